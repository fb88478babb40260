package webservice

import (
	"sort"

	"github.com/digitalis/digitalis/internal/models"
)

// Function names exposed by the REST endpoint
const (
	FunctionGetUsers     = "local_digitalis_get_users"
	FunctionUnenrolUsers = "local_digitalis_unenrol_users"
)

// FunctionType tells whether a function changes data
type FunctionType string

const (
	TypeRead  FunctionType = "read"
	TypeWrite FunctionType = "write"
)

// Function describes one callable web-service function
type Function struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Type         FunctionType `json:"type"`
	Capabilities []string     `json:"capabilities,omitempty"`
}

// IsWrite reports whether the function modifies data
func (f Function) IsWrite() bool {
	return f.Type == TypeWrite
}

// Service is a pre-built group of functions
type Service struct {
	Name            string     `json:"name"`
	Enabled         bool       `json:"enabled"`
	RestrictedUsers bool       `json:"restrictedusers"`
	Functions       []Function `json:"functions"`
}

// Registry holds the function definitions and the service that groups them
type Registry struct {
	functions map[string]Function
	service   Service
}

// NewRegistry returns the registry of the Digitalis functions
func NewRegistry() *Registry {
	return newRegistry("Digitalis webservices", []Function{
		{
			Name:        FunctionGetUsers,
			Description: "Return Moodle users and their associated information",
			Type:        TypeRead,
		},
		{
			Name:         FunctionUnenrolUsers,
			Description:  "Manual unenrol users",
			Type:         TypeWrite,
			Capabilities: []string{models.CapEnrolManualUnenrol},
		},
	})
}

func newRegistry(serviceName string, functions []Function) *Registry {
	r := &Registry{
		functions: make(map[string]Function, len(functions)),
		service: Service{
			Name:    serviceName,
			Enabled: true,
		},
	}
	for _, fn := range functions {
		r.functions[fn.Name] = fn
	}

	r.service.Functions = make([]Function, 0, len(r.functions))
	for _, fn := range r.functions {
		r.service.Functions = append(r.service.Functions, fn)
	}
	sort.Slice(r.service.Functions, func(i, j int) bool {
		return r.service.Functions[i].Name < r.service.Functions[j].Name
	})

	return r
}

// Lookup returns the function registered under name
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// Service returns the pre-built service definition
func (r *Registry) Service() Service {
	return r.service
}
