// Package plan describes a deployment as an ordered list of upload,
// instantiate, execute and checkpoint steps, and resolves the ${...}
// references that thread code IDs and addresses from one step into the next.
package plan

// Step kinds.
const (
	KindUpload      = "upload"
	KindInstantiate = "instantiate"
	KindExecute     = "execute"
	KindCheckpoint  = "checkpoint"
)

// Plan is an ordered deployment.
type Plan struct {
	Name string `yaml:"name" json:"name"`
	// ContractsDir holds the .wasm artifacts, relative to the plan file.
	ContractsDir string `yaml:"contracts_dir" json:"contracts_dir"`
	// ConfigDir holds msg_file documents, relative to the plan file.
	ConfigDir string `yaml:"config_dir" json:"config_dir"`
	// Label prefixes default instantiate labels.
	Label string `yaml:"label" json:"label"`
	Steps []Step `yaml:"steps" json:"steps"`

	baseDir string
}

// Step is one unit of work. Exactly one of the kind fields is set.
type Step struct {
	ID          string       `yaml:"id,omitempty" json:"id,omitempty"`
	Upload      *Upload      `yaml:"upload,omitempty" json:"upload,omitempty"`
	Instantiate *Instantiate `yaml:"instantiate,omitempty" json:"instantiate,omitempty"`
	Execute     *Execute     `yaml:"execute,omitempty" json:"execute,omitempty"`
	Checkpoint  *Checkpoint  `yaml:"checkpoint,omitempty" json:"checkpoint,omitempty"`
}

// Upload stores a wasm artifact and records its code ID as codes.<Contract>.
type Upload struct {
	Contract string `yaml:"contract" json:"contract"`
	File     string `yaml:"file" json:"file"`
}

// Instantiate creates contracts.<Name> from codes.<Code>.
type Instantiate struct {
	Name     string    `yaml:"name,omitempty" json:"name,omitempty"`
	Code     string    `yaml:"code" json:"code"`
	Label    string    `yaml:"label,omitempty" json:"label,omitempty"`
	Admin    string    `yaml:"admin,omitempty" json:"admin,omitempty"`
	Msg      any       `yaml:"msg,omitempty" json:"msg,omitempty"`
	MsgFile  string    `yaml:"msg_file,omitempty" json:"msg_file,omitempty"`
	Funds    string    `yaml:"funds,omitempty" json:"funds,omitempty"`
	Captures []Capture `yaml:"captures,omitempty" json:"captures,omitempty"`
}

// ContractName is the name the instantiated address is recorded under.
func (i *Instantiate) ContractName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Code
}

// Execute sends a message to an existing contract.
type Execute struct {
	Contract string    `yaml:"contract" json:"contract"`
	Msg      any       `yaml:"msg,omitempty" json:"msg,omitempty"`
	MsgFile  string    `yaml:"msg_file,omitempty" json:"msg_file,omitempty"`
	Funds    string    `yaml:"funds,omitempty" json:"funds,omitempty"`
	Captures []Capture `yaml:"captures,omitempty" json:"captures,omitempty"`
}

// Checkpoint pauses the run so an operator can edit the listed files.
type Checkpoint struct {
	Message string   `yaml:"message" json:"message"`
	Files   []string `yaml:"files,omitempty" json:"files,omitempty"`
}

// Capture copies an event attribute into values.<As>.
type Capture struct {
	Event     string `yaml:"event" json:"event"`
	Attribute string `yaml:"attribute" json:"attribute"`
	// Index selects among repeated matches, zero based.
	Index int    `yaml:"index,omitempty" json:"index,omitempty"`
	As    string `yaml:"as" json:"as"`
}
