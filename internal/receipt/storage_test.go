package receipt

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			key   string
			saved string
			err   error
		)

		BeforeEach(func() {
			key = "abc_receipt.jpg"
		})

		JustBeforeEach(func() {
			saved, err = storage.Save(key, []byte("image bytes"))
		})

		It("writes the file under the base path", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal(key))
			Expect(filepath.Join(tmpDir, key)).To(BeAnExistingFile())
		})

		When("the key tries to leave the base path", func() {
			BeforeEach(func() {
				key = "../escape.jpg"
			})

			It("returns a validation error", func() {
				Expect(err).To(MatchError(ErrValidation))
			})
		})
	})

	Describe("Get", func() {
		It("returns the stored bytes", func() {
			_, err := storage.Save("a.png", []byte("png bytes"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get("a.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("png bytes"))
		})

		It("returns ErrNotFound for a missing file", func() {
			_, err := storage.Get("missing.png")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("removes the file", func() {
			_, err := storage.Save("a.png", []byte("png bytes"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete("a.png")).To(Succeed())
			Expect(filepath.Join(tmpDir, "a.png")).NotTo(BeAnExistingFile())
		})

		It("ignores files that are already gone", func() {
			Expect(storage.Delete("missing.png")).To(Succeed())
		})
	})
})

var _ = Describe("sanitizeFilename", func() {
	DescribeTable("cleans upload names",
		func(in, want string) {
			Expect(sanitizeFilename(in)).To(Equal(want))
		},
		Entry("plain name", "receipt.jpg", "receipt.jpg"),
		Entry("special characters", "IMG_2024(1)!.JPG", "IMG_20241.jpg"),
		Entry("directories", "../../etc/passwd", "passwd"),
		Entry("windows paths", `C:\Users\jane\scan.pdf`, "scan.pdf"),
		Entry("nothing left", "!!!.png", "receipt.png"),
		Entry("collapsed spaces", "lunch   with  client.heic", "lunch with client.heic"),
	)

	It("truncates long names", func() {
		long := "a123456789b123456789c123456789d123456789e123456789f123456789.jpg"
		Expect(sanitizeFilename(long)).To(Equal("a123456789b123456789c123456789d123456789e123456789.jpg"))
	})
})
