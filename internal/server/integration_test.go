package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/scanning"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/session"
)

var _ = Describe("Integration", func() {
	var (
		db          *receipt.BoltDB
		storage     *receipt.LocalStorage
		scanner     *fakeScanner
		env         *testEnv
		janeToken   string
		johnToken   string
		fileContent []byte
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = receipt.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		_, err = receipt.Seed(db, time.Now())
		Expect(err).NotTo(HaveOccurred())

		storage, err = receipt.NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		scanner = &fakeScanner{data: &scanning.ReceiptData{
			Store: "Hilton",
			Date:  "2024-04-18",
			Items: []scanning.ItemData{{Name: "Room", Price: 189.5, Quantity: 2}},
			Total: 379,
		}}

		sessions, err := session.NewManager("integration-secret", time.Hour)
		Expect(err).NotTo(HaveOccurred())

		directory := receipt.NewDirectory(db)
		service := receipt.NewService(receipt.NewStore(db), directory, scanner, storage)
		env = &testEnv{
			storage:     storage,
			scanner:     scanner,
			sessions:    sessions,
			server:      NewServer(service, directory, sessions, Config{}),
			ghttpServer: ghttp.NewServer(),
		}
		for i := 0; i < 10; i++ {
			env.ghttpServer.AppendHandlers(env.server.ServeHTTP)
		}
		janeToken = env.token("2", receipt.RoleEmployee)
		johnToken = env.token("1", receipt.RoleSupervisor)
		fileContent = []byte("%PDF-1.4 ... fake pdf content ...")
	})

	AfterEach(func() {
		env.ghttpServer.Close()
		db.Close()
	})

	upload := func(filename string) (*http.Response, []byte) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		header.Set("Content-Type", "application/pdf")
		part, err := writer.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(fileContent)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		return env.do("POST", "/api/receipts/scan", janeToken, writer.FormDataContentType(), body)
	}

	It("scans, submits, approves and exports a receipt", func() {
		// Step 1: scan the upload
		resp, body := upload("hotel folio.pdf")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var prefill receipt.Prefill
		Expect(json.Unmarshal(body, &prefill)).To(Succeed())
		Expect(prefill.Extracted).To(BeTrue())
		Expect(prefill.Store).To(Equal("Hilton"))
		Expect(prefill.Items).To(HaveLen(1))

		key := strings.TrimPrefix(prefill.Image, "upload:")
		stored, err := storage.Get(key)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(Equal(fileContent))

		// Step 2: submit the suggested draft
		resp, body = env.doJSON("POST", "/api/receipts", janeToken, receipt.Draft{
			Date:        prefill.Date,
			Store:       prefill.Store,
			Category:    "Travel",
			Subcategory: "Hotel",
			Items:       prefill.Items,
			Image:       prefill.Image,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var submitted receipt.Receipt
		Expect(json.Unmarshal(body, &submitted)).To(Succeed())
		Expect(submitted.Total.StringFixed(2)).To(Equal("379.00"))

		saved, err := db.GetReceipt(submitted.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Status).To(Equal(receipt.StatusPending))

		// Step 3: the image is served back
		resp, body = env.do("GET", "/api/receipts/"+submitted.ID+"/image", janeToken, "", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
		Expect(body).To(Equal(fileContent))

		// Step 4: approve
		resp, _ = env.doJSON("POST", "/api/receipts/"+submitted.ID+"/approve", johnToken, map[string]any{
			"comment":  "Conference stay",
			"revision": submitted.Revision,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		// Step 5: export
		resp, body = env.do("GET", "/api/reports/export?status=approved&category=Travel", johnToken, "", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("2024-04-18,Hilton,Travel,Hotel,379.00,approved,Conference stay"))
	})

	It("keeps the upload when the scanner fails", func() {
		scanner.err = scanning.ErrDisabled
		scanner.data = nil

		resp, body := upload("scan.pdf")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var prefill receipt.Prefill
		Expect(json.Unmarshal(body, &prefill)).To(Succeed())
		Expect(prefill.Extracted).To(BeFalse())
		Expect(prefill.Image).To(HavePrefix("upload:"))
	})

	It("rejects requests without a file", func() {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		Expect(writer.WriteField("note", "nothing attached")).To(Succeed())
		Expect(writer.Close()).To(Succeed())

		resp, respBody := env.do("POST", "/api/receipts/scan", janeToken, writer.FormDataContentType(), body)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(string(respBody)).To(ContainSubstring(`"field":"file"`))
	})
})
