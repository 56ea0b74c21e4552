package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed palomadex.yaml
var palomadexPlan []byte

// Default returns the built-in Palomadex plan. Relative directories resolve
// against the working directory.
func Default() (*Plan, error) {
	return Parse(palomadexPlan, ".")
}

// Load reads a plan file. Relative directories resolve against the file's
// directory.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes a YAML plan, fills default step IDs and validates it.
func Parse(data []byte, baseDir string) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	p.baseDir = baseDir
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Marshal renders the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// normalize assigns default ids. Execute and checkpoint steps are numbered
// per kind, counting the ones that carry an explicit id.
func (p *Plan) normalize() {
	var executes, checkpoints int
	for i := range p.Steps {
		s := &p.Steps[i]
		switch {
		case s.Execute != nil:
			executes++
		case s.Checkpoint != nil:
			checkpoints++
		}
		if s.ID != "" {
			continue
		}
		switch {
		case s.Upload != nil:
			s.ID = "upload-" + s.Upload.Contract
		case s.Instantiate != nil:
			s.ID = "instantiate-" + s.Instantiate.ContractName()
		case s.Execute != nil:
			s.ID = fmt.Sprintf("execute-%d", executes)
		case s.Checkpoint != nil:
			s.ID = fmt.Sprintf("checkpoint-%d", checkpoints)
		}
	}
}

// ContractPath returns the path of a wasm artifact.
func (p *Plan) ContractPath(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(p.baseDir, p.ContractsDir, file)
}

// ConfigPath returns the directory msg_file documents are read from.
func (p *Plan) ConfigPath() string {
	if filepath.IsAbs(p.ConfigDir) {
		return p.ConfigDir
	}
	return filepath.Join(p.baseDir, p.ConfigDir)
}

// DefaultLabel is the label used when an instantiate step sets none.
func (p *Plan) DefaultLabel(name string) string {
	if p.Label == "" {
		return name
	}
	return p.Label + "-" + name
}

// Kind returns the step kind, or "" if none is set.
func (s *Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s *Step) kinds() []string {
	var kinds []string
	if s.Upload != nil {
		kinds = append(kinds, KindUpload)
	}
	if s.Instantiate != nil {
		kinds = append(kinds, KindInstantiate)
	}
	if s.Execute != nil {
		kinds = append(kinds, KindExecute)
	}
	if s.Checkpoint != nil {
		kinds = append(kinds, KindCheckpoint)
	}
	return kinds
}

// Message returns the step's JSON message, unresolved. A msg_file is read
// now, not at load time, so edits made at an earlier checkpoint are seen.
func (s *Step) Message(configDir string) ([]byte, error) {
	var (
		inline any
		file   string
	)
	switch {
	case s.Instantiate != nil:
		inline, file = s.Instantiate.Msg, s.Instantiate.MsgFile
	case s.Execute != nil:
		inline, file = s.Execute.Msg, s.Execute.MsgFile
	default:
		return nil, fmt.Errorf("%w: step %s carries no message", ErrInvalidPlan, s.ID)
	}

	if file != "" {
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir, file)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("step %s: read msg_file: %w", s.ID, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w: step %s: %s", ErrInvalidMessage, s.ID, path)
		}
		return data, nil
	}
	if inline == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(inline)
	if err != nil {
		return nil, fmt.Errorf("%w: step %s: %v", ErrInvalidMessage, s.ID, err)
	}
	return data, nil
}

// Validate checks step shape, ID uniqueness and that every reference in an
// inline field is produced by an earlier step. References inside msg_file
// documents are checked when the step runs.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidPlan}, args...)...))
	}

	ids := make(map[string]bool, len(p.Steps))
	known := map[string]bool{refSender: true, refChainID: true}
	checkRefs := func(id, field, s string) {
		for _, ref := range References(s) {
			if !known[ref] {
				fail("step %s: %s references ${%s} before it is produced", id, field, ref)
			}
		}
	}

	for i := range p.Steps {
		s := &p.Steps[i]
		if kinds := s.kinds(); len(kinds) != 1 {
			fail("step %d (%s): want exactly one of upload, instantiate, execute, checkpoint, got %d", i+1, s.ID, len(kinds))
			continue
		}
		if ids[s.ID] {
			fail("duplicate step id %q", s.ID)
		}
		ids[s.ID] = true

		switch {
		case s.Upload != nil:
			if s.Upload.Contract == "" || s.Upload.File == "" {
				fail("step %s: upload needs contract and file", s.ID)
			}
			known[refCodes+s.Upload.Contract] = true

		case s.Instantiate != nil:
			in := s.Instantiate
			if in.Code == "" {
				fail("step %s: instantiate needs code", s.ID)
			} else if !known[refCodes+in.Code] {
				fail("step %s: code %q is not uploaded by an earlier step", s.ID, in.Code)
			}
			if in.Msg != nil && in.MsgFile != "" {
				fail("step %s: msg and msg_file are exclusive", s.ID)
			}
			checkRefs(s.ID, "label", in.Label)
			checkRefs(s.ID, "admin", in.Admin)
			checkRefs(s.ID, "funds", in.Funds)
			checkRefs(s.ID, "msg", inlineText(in.Msg))
			p.validateCaptures(s.ID, in.Captures, fail)
			known[refContracts+in.ContractName()] = true
			for _, c := range in.Captures {
				known[refValues+c.As] = true
			}

		case s.Execute != nil:
			ex := s.Execute
			if ex.Contract == "" {
				fail("step %s: execute needs contract", s.ID)
			}
			if ex.Msg != nil && ex.MsgFile != "" {
				fail("step %s: msg and msg_file are exclusive", s.ID)
			}
			checkRefs(s.ID, "contract", ex.Contract)
			checkRefs(s.ID, "funds", ex.Funds)
			checkRefs(s.ID, "msg", inlineText(ex.Msg))
			p.validateCaptures(s.ID, ex.Captures, fail)
			for _, c := range ex.Captures {
				known[refValues+c.As] = true
			}

		case s.Checkpoint != nil:
			if s.Checkpoint.Message == "" {
				fail("step %s: checkpoint needs message", s.ID)
			}
		}
	}
	return errors.Join(errs...)
}

func (p *Plan) validateCaptures(id string, captures []Capture, fail func(string, ...any)) {
	for _, c := range captures {
		if c.Event == "" || c.Attribute == "" || c.As == "" {
			fail("step %s: capture needs event, attribute and as", id)
		}
		if c.Index < 0 {
			fail("step %s: capture %s has negative index", id, c.As)
		}
	}
}

func inlineText(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
