package server

import (
	"net/http"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	users, err := s.directory.Users(r.URL.Query().Get("q"), r.URL.Query().Get("department"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	var in receipt.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.directory.CreateUser(identity, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	user, err := s.directory.User(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	var patch receipt.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.directory.UpdateUser(identity, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	if err := s.directory.DeleteUser(identity, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	departments, err := s.directory.Departments()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, departments)
}

type departmentRequest struct {
	Name         string `json:"name"`
	SupervisorID string `json:"supervisor_id"`
}

func (s *Server) handleCreateDepartment(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	var req departmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dep, err := s.directory.CreateDepartment(identity, req.Name, req.SupervisorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

func (s *Server) handleGetDepartment(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	dep, err := s.directory.Department(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

func (s *Server) handleDeleteDepartment(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	if err := s.directory.DeleteDepartment(identity, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
