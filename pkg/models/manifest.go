package models

import "strings"

type Channel string

const (
	ChannelStable  Channel = "stable"
	ChannelNightly Channel = "nightly"
	ChannelBeta    Channel = "beta"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelStable, ChannelNightly, ChannelBeta:
		return true
	}
	return false
}

// ChannelPlaceholder is the token commands use to bind to the release
// channel selected at run time.
const ChannelPlaceholder = "{{channel}}"

type Manifest struct {
	Dependencies PhaseSpec `yaml:"dependencies" json:"dependencies"`
	Test         PhaseSpec `yaml:"test" json:"test"`
	CacheDirs    []string  `yaml:"cache_directories,omitempty" json:"cache_directories,omitempty"`
}

type PhaseSpec struct {
	Override []string `yaml:"override" json:"override"`
}

type Phase struct {
	Name     string   `json:"name"`
	Commands []string `json:"commands"`
}

// Pipeline is the executable form of a Manifest: phases in declaration
// order, commands in declaration order within each phase.
type Pipeline struct {
	Phases    []Phase  `json:"phases"`
	CacheDirs []string `json:"cacheDirectories,omitempty"`
}

func (p *Pipeline) CommandCount() int {
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Commands)
	}
	return n
}

// ExpandChannel returns a copy of the pipeline with every channel
// placeholder replaced by the given channel name. Commands without the
// placeholder are channel-invariant and pass through unchanged.
func (p *Pipeline) ExpandChannel(channel Channel) *Pipeline {
	out := &Pipeline{
		Phases:    make([]Phase, len(p.Phases)),
		CacheDirs: p.CacheDirs,
	}
	for i, ph := range p.Phases {
		cmds := make([]string, len(ph.Commands))
		for j, cmd := range ph.Commands {
			cmds[j] = strings.ReplaceAll(cmd, ChannelPlaceholder, string(channel))
		}
		out.Phases[i] = Phase{Name: ph.Name, Commands: cmds}
	}
	return out
}
