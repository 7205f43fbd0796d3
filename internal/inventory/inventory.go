// Package inventory loads the node document a configuration run works
// from: the host's role, the environment facts, the app list and, for
// remote runs, the hosts to connect to.
//
// The document is YAML; JSON input is accepted as well since it is a
// subset of YAML.
//
//	role:
//	  name: app-1
//	  instance_role: app_master
//	environment:
//	  ssh_username: deploy
//	  db_stack: postgres9
//	  db_host: db-master.internal
//	apps:
//	  - name: Tout
//	hosts:
//	  - name: 10.0.0.12
//	    user: deploy
package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/eniac111/cookbook/internal/types"
)

// Node is everything the resolver needs to know about one host.
type Node struct {
	Role            types.RoleDescriptor   `yaml:"role"`
	Environment     types.EnvironmentFacts `yaml:"environment"`
	Apps            []types.AppDescriptor  `yaml:"apps" validate:"dive"`
	types.Inventory `yaml:",inline"`
}

// Provider supplies the node document once per run.
type Provider interface {
	Node(ctx context.Context) (*Node, error)
}

// File reads the node document from a path; "-" means standard input.
type File struct {
	Path  string
	Stdin io.Reader
}

func (f File) Node(ctx context.Context) (*Node, error) {
	var (
		data []byte
		err  error
	)
	if f.Path == "-" {
		in := f.Stdin
		if in == nil {
			in = os.Stdin
		}
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(f.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read node document: %w", err)
	}
	return Parse(data)
}

var validate = validator.New()

// Parse decodes and validates a node document. Unknown keys are rejected
// so that typos in fact names do not silently fall back to empty values.
func Parse(data []byte) (*Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var n Node
	if err := dec.Decode(&n); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse node document: empty document")
		}
		return nil, fmt.Errorf("failed to parse node document: %w", err)
	}
	if err := validate.Struct(&n); err != nil {
		return nil, fmt.Errorf("invalid node document: %s", describe(err))
	}
	return &n, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
