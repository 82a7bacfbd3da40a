package scanning

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	return img
}

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		payload []byte
		mime    string
		data    *ReceiptData
		err     error
		seen    ollamaChatRequest
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(png.Encode(&buf, testImage())).To(Succeed())
		payload = buf.Bytes()
		mime = "image/png"
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		data, err = scanner.ScanReceipt(payload, mime)
	})

	When("the model answers with receipt JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				func(w http.ResponseWriter, r *http.Request) {
					body, _ := io.ReadAll(r.Body)
					Expect(json.Unmarshal(body, &seen)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"store": "Office Depot", "date": "2024-04-15", "total": 156.78}`},
					Done:    true,
				}),
			))
		})

		It("returns the extracted data", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Store).To(Equal("Office Depot"))
			Expect(data.Date).To(Equal("2024-04-15"))
			Expect(data.Total).To(Equal(156.78))
		})

		It("sends the image in JSON mode", func() {
			Expect(seen.Model).To(Equal("llava"))
			Expect(seen.Format).To(Equal("json"))
			Expect(seen.Messages).To(HaveLen(2))
			Expect(seen.Messages[1].Images).To(HaveLen(1))
		})
	})

	When("ollama returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the upload is not an image", func() {
		BeforeEach(func() {
			payload = []byte("definitely not an image")
			mime = "image/jpeg"
		})

		It("fails before calling the model", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})

var _ = Describe("prepareImageData", func() {
	It("passes PNG through untouched", func() {
		var buf bytes.Buffer
		Expect(png.Encode(&buf, testImage())).To(Succeed())

		out, err := prepareImageData(buf.Bytes(), "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(buf.Bytes()))
	})

	It("converts JPEG to PNG", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())

		out, err := prepareImageData(buf.Bytes(), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		_, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})
})

var _ = Describe("Disabled", func() {
	It("never scans", func() {
		_, err := Disabled{}.ScanReceipt([]byte("x"), "image/png")
		Expect(err).To(MatchError(ErrDisabled))
	})
})
