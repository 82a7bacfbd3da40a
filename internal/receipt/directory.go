package receipt

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
)

// UserInput holds the fields of a new user
type UserInput struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id"`
}

// UserPatch holds the user fields to change. Nil fields are left untouched.
type UserPatch struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Email        *string `json:"email"`
	Role         *Role   `json:"role"`
	DepartmentID *string `json:"department_id"`
}

// Directory manages users and departments. Department membership is derived
// from User.DepartmentID; departments never store their member list.
type Directory struct {
	mu          sync.Mutex
	db          DB
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewDirectory creates a Directory with default ID generator and time source
func NewDirectory(db DB) *Directory {
	return NewDirectoryWithDeps(db, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewDirectoryWithDeps creates a Directory with custom dependencies for testing
func NewDirectoryWithDeps(db DB, idGen IDGenerator, timeSrc TimeSource) *Directory {
	return &Directory{
		db:          db,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Users lists users ordered by name. query matches name, email, role or
// department name case-insensitively; departmentID restricts to one department.
func (d *Directory) Users(query, departmentID string) ([]*User, error) {
	users, err := d.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	departments, err := d.departmentNames()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]*User, 0, len(users))
	for _, u := range users {
		if departmentID != "" && departmentID != "all" && u.DepartmentID != departmentID {
			continue
		}
		if query != "" {
			haystack := strings.ToLower(strings.Join([]string{
				u.FullName(), u.Email, string(u.Role), departments[u.DepartmentID],
			}, "\x00"))
			if !strings.Contains(haystack, query) {
				continue
			}
		}
		out = append(out, u)
	}
	sortUsers(out)
	return out, nil
}

func sortUsers(users []*User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		if users[i].FirstName != users[j].FirstName {
			return users[i].FirstName < users[j].FirstName
		}
		return users[i].ID < users[j].ID
	})
}

func (d *Directory) departmentNames() (map[string]string, error) {
	departments, err := d.db.ListDepartments()
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	names := make(map[string]string, len(departments))
	for _, dep := range departments {
		names[dep.ID] = dep.Name
	}
	return names, nil
}

// User returns the user with the given ID
func (d *Directory) User(id string) (*User, error) {
	u, err := d.db.GetUser(id)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// withUser runs fn while the user is guaranteed to exist. DeleteUser takes the
// same lock, so a user cannot disappear while fn writes records they own.
func (d *Directory) withUser(id string, fn func(u *User) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, err := d.db.GetUser(id)
	if err != nil {
		return fmt.Errorf("getting user: %w", err)
	}
	return fn(u)
}

// UserByEmail looks a user up by email, ignoring case
func (d *Directory) UserByEmail(email string) (*User, error) {
	users, err := d.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user with email %q: %w", email, ErrNotFound)
}

// FirstNames maps user IDs to first names for report labels
func (d *Directory) FirstNames() (map[string]string, error) {
	users, err := d.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FirstName
	}
	return names, nil
}

// CreateUser adds a user to the directory
func (d *Directory) CreateUser(identity Identity, in UserInput) (*User, error) {
	if !CanManageDirectory(identity) {
		return nil, forbidden("creating users", identity)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	u := &User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.TrimSpace(in.Email),
		Role:         in.Role,
		DepartmentID: strings.TrimSpace(in.DepartmentID),
	}
	if err := d.validateUser(u); err != nil {
		return nil, err
	}

	now := d.timeSource.Now()
	u.ID = d.idGenerator.Generate()
	u.CreatedAt = now
	u.UpdatedAt = now
	if err := d.db.SaveUser(u); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	return u, nil
}

// UpdateUser applies patch to the user with the given ID. A supervisor who
// still supervises a department cannot be demoted.
func (d *Directory) UpdateUser(identity Identity, id string, patch UserPatch) (*User, error) {
	if !CanManageDirectory(identity) {
		return nil, forbidden("updating users", identity)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	u, err := d.db.GetUser(id)
	if err != nil {
		return nil, fmt.Errorf("getting user for update: %w", err)
	}
	previousRole := u.Role

	if patch.FirstName != nil {
		u.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		u.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Email != nil {
		u.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.DepartmentID != nil {
		u.DepartmentID = strings.TrimSpace(*patch.DepartmentID)
	}
	if err := d.validateUser(u); err != nil {
		return nil, err
	}

	if previousRole == RoleSupervisor && u.Role != RoleSupervisor {
		dep, err := d.supervisedDepartment(u.ID)
		if err != nil {
			return nil, err
		}
		if dep != nil {
			return nil, NewValidationError("role", fmt.Sprintf("user supervises department %s", dep.Name))
		}
	}

	u.UpdatedAt = d.timeSource.Now()
	if err := d.db.SaveUser(u); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	return u, nil
}

func (d *Directory) validateUser(u *User) error {
	ve := &ValidationError{}
	if u.FirstName == "" {
		ve.Add("first_name", "is required")
	}
	if u.LastName == "" {
		ve.Add("last_name", "is required")
	}
	if u.Email == "" {
		ve.Add("email", "is required")
	} else if _, err := mail.ParseAddress(u.Email); err != nil {
		ve.Add("email", "is not a valid address")
	} else {
		existing, err := d.UserByEmail(u.Email)
		switch {
		case err == nil && existing.ID != u.ID:
			ve.Add("email", "is already in use")
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}
	}
	if !u.Role.IsValid() {
		ve.Add("role", "must be employee or supervisor")
	}
	if u.DepartmentID != "" {
		if _, err := d.db.GetDepartment(u.DepartmentID); errors.Is(err, ErrNotFound) {
			ve.Add("department_id", "unknown department")
		} else if err != nil {
			return fmt.Errorf("getting department: %w", err)
		}
	}
	return ve.Err()
}

func (d *Directory) supervisedDepartment(userID string) (*Department, error) {
	departments, err := d.db.ListDepartments()
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	for _, dep := range departments {
		if dep.SupervisorID == userID {
			return dep, nil
		}
	}
	return nil, nil
}

// DeleteUser removes a user who owns no receipts and supervises no department
func (d *Directory) DeleteUser(identity Identity, id string) error {
	if !CanManageDirectory(identity) {
		return forbidden("deleting users", identity)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.GetUser(id); err != nil {
		return fmt.Errorf("getting user for deletion: %w", err)
	}
	dep, err := d.supervisedDepartment(id)
	if err != nil {
		return err
	}
	if dep != nil {
		return fmt.Errorf("user %s supervises department %s: %w", id, dep.Name, ErrConflict)
	}
	receipts, err := d.db.ListReceipts()
	if err != nil {
		return fmt.Errorf("listing receipts: %w", err)
	}
	for _, r := range receipts {
		if r.UserID == id {
			return fmt.Errorf("user %s owns receipts: %w", id, ErrConflict)
		}
	}

	if err := d.db.DeleteUser(id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// Departments lists departments ordered by name, with members filled in
func (d *Directory) Departments() ([]*Department, error) {
	departments, err := d.db.ListDepartments()
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	users, err := d.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	for _, dep := range departments {
		dep.EmployeeIDs = employeesOf(dep.ID, users)
	}
	sort.Slice(departments, func(i, j int) bool { return departments[i].Name < departments[j].Name })
	return departments, nil
}

// Department returns a department with its members filled in
func (d *Directory) Department(id string) (*Department, error) {
	dep, err := d.db.GetDepartment(id)
	if err != nil {
		return nil, fmt.Errorf("getting department: %w", err)
	}
	users, err := d.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	dep.EmployeeIDs = employeesOf(dep.ID, users)
	return dep, nil
}

// employeesOf returns the sorted IDs of employees assigned to departmentID
func employeesOf(departmentID string, users []*User) []string {
	ids := make([]string, 0)
	for _, u := range users {
		if u.DepartmentID == departmentID && u.Role == RoleEmployee {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// CreateDepartment adds a department supervised by supervisorID
func (d *Directory) CreateDepartment(identity Identity, name, supervisorID string) (*Department, error) {
	if !CanManageDirectory(identity) {
		return nil, forbidden("creating departments", identity)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	name = strings.TrimSpace(name)
	ve := &ValidationError{}
	if name == "" {
		ve.Add("name", "is required")
	} else {
		departments, err := d.db.ListDepartments()
		if err != nil {
			return nil, fmt.Errorf("listing departments: %w", err)
		}
		for _, dep := range departments {
			if strings.EqualFold(dep.Name, name) {
				ve.Add("name", "is already in use")
				break
			}
		}
	}
	supervisor, err := d.db.GetUser(supervisorID)
	switch {
	case errors.Is(err, ErrNotFound):
		ve.Add("supervisor_id", "unknown user")
	case err != nil:
		return nil, fmt.Errorf("getting supervisor: %w", err)
	case supervisor.Role != RoleSupervisor:
		ve.Add("supervisor_id", "user is not a supervisor")
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	now := d.timeSource.Now()
	dep := &Department{
		ID:           d.idGenerator.Generate(),
		Name:         name,
		SupervisorID: supervisorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := d.db.SaveDepartment(dep); err != nil {
		return nil, fmt.Errorf("saving department: %w", err)
	}
	dep.EmployeeIDs = []string{}
	return dep, nil
}

// DeleteDepartment removes a department nobody is assigned to
func (d *Directory) DeleteDepartment(identity Identity, id string) error {
	if !CanManageDirectory(identity) {
		return forbidden("deleting departments", identity)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.GetDepartment(id); err != nil {
		return fmt.Errorf("getting department for deletion: %w", err)
	}
	users, err := d.db.ListUsers()
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	for _, u := range users {
		if u.DepartmentID == id {
			return fmt.Errorf("department %s still has members: %w", id, ErrConflict)
		}
	}
	if err := d.db.DeleteDepartment(id); err != nil {
		return fmt.Errorf("deleting department: %w", err)
	}
	return nil
}
