package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrUnknownTool is returned by mutations naming a tool that is not
// configured.
var ErrUnknownTool = errors.New("unknown tool")

// ErrDuplicateTool is returned when adding a tool whose ID is taken.
var ErrDuplicateTool = errors.New("duplicate tool id")

// Pipeline holds the configured tools of one pipeline instance.
//
// A Pipeline is not safe for concurrent use. Batch processing gives every
// worker its own copy through Clone.
type Pipeline struct {
	// tools is ordered by stage, then by configured position.
	tools    []*StageTool
	settings Settings
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTools adds tools in order.
func WithTools(tools ...*StageTool) Option {
	return func(p *Pipeline) {
		for _, st := range tools {
			p.insert(st)
		}
	}
}

// New creates a pipeline with the given settings.
func New(settings Settings, opts ...Option) *Pipeline {
	p := &Pipeline{settings: settings, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settings returns the pipeline settings.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// SetSettings replaces the settings. Memos of the threshold stage and later
// are cleared since the merge and region parameters feed into them.
func (p *Pipeline) SetSettings(s Settings) {
	p.settings = s
	p.invalidateFromStage(StageThreshold)
}

// Clone returns an independent copy of the pipeline. Memos are carried
// over; tools are cloned.
func (p *Pipeline) Clone() *Pipeline {
	c := &Pipeline{settings: p.settings, logger: p.logger, tools: make([]*StageTool, len(p.tools))}
	for i, st := range p.tools {
		c.tools[i] = st.clone()
	}
	return c
}

// Tools lists every configured tool in execution order.
func (p *Pipeline) Tools() []ToolInfo {
	out := make([]ToolInfo, len(p.tools))
	for i, st := range p.tools {
		out[i] = st.info(i - p.stageStart(st.Stage))
	}
	return out
}

// Tool returns the descriptor with the given ID.
func (p *Pipeline) Tool(id string) (*StageTool, bool) {
	i := p.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return p.tools[i], true
}

// Add appends st to the end of its stage.
func (p *Pipeline) Add(st *StageTool) error {
	if st == nil || st.Tool == nil {
		return fmt.Errorf("tool must not be nil")
	}
	if st.ID == "" {
		return fmt.Errorf("tool id must not be empty")
	}
	if p.indexOf(st.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, st.ID)
	}
	i := p.insert(st)
	p.invalidateFrom(i + 1)
	return nil
}

// Toggle flips the enabled flag of a tool.
func (p *Pipeline) Toggle(id string) error {
	i := p.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	return p.SetEnabled(id, !p.tools[i].Enabled)
}

// SetEnabled enables or disables a tool.
func (p *Pipeline) SetEnabled(id string, enabled bool) error {
	i := p.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	p.tools[i].Enabled = enabled
	p.invalidateFrom(i)
	return nil
}

// Move places a tool at index within its stage. Indices past the end of
// the stage move it to the end.
func (p *Pipeline) Move(id string, index int) error {
	i := p.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	if index < 0 {
		return fmt.Errorf("invalid position %d for tool %s", index, id)
	}

	st := p.tools[i]
	start, end := p.stageStart(st.Stage), p.stageEnd(st.Stage)
	target := min(start+index, end-1)
	if target == i {
		return nil
	}

	p.tools = append(p.tools[:i], p.tools[i+1:]...)
	p.tools = append(p.tools[:target], append([]*StageTool{st}, p.tools[target:]...)...)
	p.invalidateFrom(min(i, target))
	return nil
}

// Delete removes a tool.
func (p *Pipeline) Delete(id string) error {
	i := p.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	p.tools = append(p.tools[:i], p.tools[i+1:]...)
	p.invalidateFrom(i)
	return nil
}

// Update replaces the tool of a descriptor, for example after a parameter
// change.
func (p *Pipeline) Update(id string, tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool must not be nil")
	}
	i := p.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	p.tools[i].Tool = tool
	p.invalidateFrom(i)
	return nil
}

// Validate checks the stage configuration: every enabled finalizing
// cleanup tool must be the last enabled tool of its stage.
func (p *Pipeline) Validate() error {
	final := ""
	for _, st := range p.tools {
		if !st.Enabled || st.Stage != StageMaskCleanup {
			continue
		}
		if final != "" {
			return &StageError{
				Kind: KindConfiguration, Stage: StageMaskCleanup, ToolID: st.ID,
				Message: fmt.Sprintf("tool runs after %s, which must be last in its stage", final),
			}
		}
		if f, ok := st.Tool.(Finalizer); ok && f.Final() {
			final = st.ID
		}
	}
	return nil
}

func (p *Pipeline) insert(st *StageTool) int {
	i := p.stageEnd(st.Stage)
	p.tools = append(p.tools, nil)
	copy(p.tools[i+1:], p.tools[i:])
	p.tools[i] = st
	return i
}

func (p *Pipeline) indexOf(id string) int {
	for i, st := range p.tools {
		if st.ID == id {
			return i
		}
	}
	return -1
}

// stageStart returns the index of the first tool of stage s, or where it
// would be.
func (p *Pipeline) stageStart(s StageKind) int {
	return sort.Search(len(p.tools), func(i int) bool { return p.tools[i].Stage >= s })
}

// stageEnd returns one past the last tool of stage s.
func (p *Pipeline) stageEnd(s StageKind) int {
	return sort.Search(len(p.tools), func(i int) bool { return p.tools[i].Stage > s })
}

// invalidateFrom clears the memo of every tool from position i onward:
// the rest of i's stage and every later stage.
func (p *Pipeline) invalidateFrom(i int) {
	for ; i < len(p.tools); i++ {
		p.tools[i].Invalidate()
	}
}

func (p *Pipeline) invalidateFromStage(s StageKind) {
	p.invalidateFrom(p.stageStart(s))
}
