package receipt

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Directory", func() {
	var (
		db        *mockDB
		directory *Directory
	)

	BeforeEach(func() {
		db = newMockDB()
		now := time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)
		_, err := Seed(db, now)
		Expect(err).NotTo(HaveOccurred())
		directory = NewDirectoryWithDeps(db, &mockIDGenerator{}, &mockTimeSource{now: now})
	})

	Describe("Users", func() {
		It("orders users by last name", func() {
			users, err := directory.Users("", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(3))
			Expect([]string{users[0].LastName, users[1].LastName, users[2].LastName}).
				To(Equal([]string{"Doe", "Johnson", "Smith"}))
		})

		DescribeTable("searching",
			func(query string, expected ...string) {
				users, err := directory.Users(query, "all")
				Expect(err).NotTo(HaveOccurred())
				ids := make([]string, 0, len(users))
				for _, u := range users {
					ids = append(ids, u.ID)
				}
				Expect(ids).To(ConsistOf(expected))
			},
			Entry("by first name", "jane", "2"),
			Entry("by email", "MIKE@EXAMPLE", "3"),
			Entry("by role", "supervisor", "1"),
			Entry("by department name", "engineering", "1", "2", "3"),
			Entry("with no match", "zelda"),
		)

		It("filters by department", func() {
			users, err := directory.Users("", "other")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(BeEmpty())
		})
	})

	It("finds users by email ignoring case", func() {
		u, err := directory.UserByEmail(" Jane@Example.com ")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.ID).To(Equal("2"))

		_, err = directory.UserByEmail("nobody@example.com")
		Expect(err).To(MatchError(ErrNotFound))
	})

	It("maps ids to first names", func() {
		names, err := directory.FirstNames()
		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal(map[string]string{"1": "John", "2": "Jane", "3": "Mike"}))
	})

	Describe("CreateUser", func() {
		var input UserInput

		BeforeEach(func() {
			input = UserInput{
				FirstName:    "Ana",
				LastName:     "Lopez",
				Email:        "ana@example.com",
				Role:         RoleEmployee,
				DepartmentID: "1",
			}
		})

		It("creates the user", func() {
			u, err := directory.CreateUser(supervisor, input)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ID).To(Equal("test-id-1"))

			dep, err := directory.Department("1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dep.EmployeeIDs).To(ContainElement("test-id-1"))
		})

		It("is forbidden for employees", func() {
			_, err := directory.CreateUser(jane, input)
			Expect(err).To(MatchError(ErrForbidden))
		})

		It("validates every field", func() {
			_, err := directory.CreateUser(supervisor, UserInput{Email: "not an address", Role: "admin", DepartmentID: "9"})
			Expect(fieldNames(err)).To(ConsistOf("first_name", "last_name", "email", "role", "department_id"))
		})

		It("refuses a duplicate email", func() {
			input.Email = "JOHN@example.com"
			_, err := directory.CreateUser(supervisor, input)
			Expect(fieldNames(err)).To(ConsistOf("email"))
		})
	})

	Describe("UpdateUser", func() {
		It("applies only the given fields", func() {
			last := "Smith-Jones"
			u, err := directory.UpdateUser(supervisor, "2", UserPatch{LastName: &last})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.FirstName).To(Equal("Jane"))
			Expect(u.LastName).To(Equal("Smith-Jones"))
		})

		It("keeps the email unique", func() {
			email := "mike@example.com"
			_, err := directory.UpdateUser(supervisor, "2", UserPatch{Email: &email})
			Expect(fieldNames(err)).To(ConsistOf("email"))
		})

		It("will not demote a supervisor who runs a department", func() {
			role := RoleEmployee
			_, err := directory.UpdateUser(supervisor, "1", UserPatch{Role: &role})
			Expect(fieldNames(err)).To(ConsistOf("role"))
		})

		It("reports unknown users", func() {
			_, err := directory.UpdateUser(supervisor, "42", UserPatch{})
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("DeleteUser", func() {
		It("refuses users who own receipts", func() {
			Expect(directory.DeleteUser(supervisor, "2")).To(MatchError(ErrConflict))
		})

		It("refuses department supervisors", func() {
			Expect(directory.DeleteUser(supervisor, "1")).To(MatchError(ErrConflict))
		})

		It("deletes everyone else", func() {
			Expect(directory.DeleteUser(supervisor, "3")).To(Succeed())
			_, err := directory.User("3")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("departments", func() {
		It("derives members from user assignments", func() {
			departments, err := directory.Departments()
			Expect(err).NotTo(HaveOccurred())
			Expect(departments).To(HaveLen(1))
			Expect(departments[0].EmployeeIDs).To(Equal([]string{"2", "3"}))
		})

		It("creates a department", func() {
			dep, err := directory.CreateDepartment(supervisor, " Finance ", "1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dep.Name).To(Equal("Finance"))
			Expect(dep.EmployeeIDs).To(BeEmpty())

			departments, err := directory.Departments()
			Expect(err).NotTo(HaveOccurred())
			Expect(departments[0].Name).To(Equal("Engineering"))
			Expect(departments[1].Name).To(Equal("Finance"))
		})

		It("validates name and supervisor", func() {
			_, err := directory.CreateDepartment(supervisor, "engineering", "2")
			Expect(fieldNames(err)).To(ConsistOf("name", "supervisor_id"))

			_, err = directory.CreateDepartment(supervisor, "", "42")
			Expect(fieldNames(err)).To(ConsistOf("name", "supervisor_id"))
		})

		It("refuses to delete a department with members", func() {
			Expect(directory.DeleteDepartment(supervisor, "1")).To(MatchError(ErrConflict))
		})

		It("deletes an empty department", func() {
			dep, err := directory.CreateDepartment(supervisor, "Finance", "1")
			Expect(err).NotTo(HaveOccurred())
			Expect(directory.DeleteDepartment(supervisor, dep.ID)).To(Succeed())
			_, err = directory.Department(dep.ID)
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("is forbidden for employees", func() {
			_, err := directory.CreateDepartment(mike, "Finance", "1")
			Expect(err).To(MatchError(ErrForbidden))
			Expect(directory.DeleteDepartment(mike, "1")).To(MatchError(ErrForbidden))
		})
	})
})

var _ = Describe("Seed", func() {
	It("loads the demo data once", func() {
		db := NewMemoryDB()
		now := time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)

		seeded, err := Seed(db, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(seeded).To(BeTrue())

		receipts, err := db.ListReceipts()
		Expect(err).NotTo(HaveOccurred())
		Expect(receipts).To(HaveLen(2))

		seeded, err = Seed(db, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(seeded).To(BeFalse())

		receipts, _ = db.ListReceipts()
		Expect(receipts).To(HaveLen(2))
	})

	It("seeds receipts the store continues from", func() {
		db := NewMemoryDB()
		_, err := Seed(db, time.Now())
		Expect(err).NotTo(HaveOccurred())

		store := NewStoreWithDeps(db, &mockIDGenerator{}, &mockTimeSource{now: time.Now()})
		added, err := store.AddReceipt(Receipt{Store: "Staples"})
		Expect(err).NotTo(HaveOccurred())

		receipts, err := store.Receipts()
		Expect(err).NotTo(HaveOccurred())
		Expect(receipts).To(HaveLen(3))
		Expect(receipts[0].Store).To(Equal("Office Depot"))
		Expect(receipts[2].ID).To(Equal(added.ID))
	})
})
