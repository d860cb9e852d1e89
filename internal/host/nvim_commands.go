package host

import (
	"bytes"
	"fmt"

	"github.com/neovim/go-client/nvim"
	"github.com/neovim/go-client/nvim/plugin"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/app"
	"go-live-docs/internal/config"
)

// Publisher is the part of the viewer the editor drives.
type Publisher interface {
	URL() string
	PublishSource(text []byte, path string) error
	HeadingAt(line int) (string, error)
	ScrollToHeading(id string)
}

// Commands is a state container for Neovim command handlers.
// It tracks the active buffer and delegates viewing to the LiveDocs service.
type Commands struct {
	docs   Publisher
	active bool
	log    logrus.FieldLogger

	lastLine    int
	lastHeading string
}

// NewCommands creates handlers publishing to docs.
func NewCommands(docs Publisher, log logrus.FieldLogger) *Commands {
	return &Commands{docs: docs, log: log}
}

// Register registers Neovim command/function handlers.
func Register(p *plugin.Plugin, cfg *config.Config, log logrus.FieldLogger) error {
	// The editor always supplies the content.
	cfg.Content.Path = ""
	cfg.Content.URL = ""
	docs, err := app.NewLiveDocs(cfg, log)
	if err != nil {
		return err
	}
	commands := NewCommands(docs, log)

	p.Handle("poll", func() (string, error) {
		return "ok", nil
	})

	p.HandleCommand(&plugin.CommandOptions{
		Name: "GoLiveDocsStart",
	}, commands.GoLiveDocsStart)

	p.HandleFunction(&plugin.FunctionOptions{
		Name: "GoLiveDocsInternalUpdate",
	}, commands.GoLiveDocsUpdate)

	p.HandleFunction(&plugin.FunctionOptions{
		Name: "GoLiveDocsInternalCursor",
	}, commands.GoLiveDocsCursor)

	return nil
}

func (c *Commands) GoLiveDocsStart(v *nvim.Nvim) error {
	c.active = true
	c.lastLine = 0
	c.lastHeading = ""

	if err := c.publishBuffer(v); err != nil {
		return err
	}

	return v.Command(fmt.Sprintf(`echom "[go-live-docs] viewer: %s"`, c.docs.URL()))
}

func (c *Commands) GoLiveDocsUpdate(v *nvim.Nvim) error {
	if !c.active {
		return nil
	}
	return c.publishBuffer(v)
}

func (c *Commands) GoLiveDocsCursor(v *nvim.Nvim) error {
	if !c.active {
		return nil
	}

	var line int
	if err := v.Eval(`line(".")`, &line); err != nil {
		return err
	}
	return c.followLine(line)
}

// followLine scrolls the viewers when the cursor enters another section.
func (c *Commands) followLine(line int) error {
	if line == c.lastLine {
		return nil
	}
	c.lastLine = line

	id, err := c.docs.HeadingAt(line)
	if err != nil {
		return err
	}
	if id == "" || id == c.lastHeading {
		return nil
	}
	c.lastHeading = id
	c.log.WithFields(logrus.Fields{"line": line, "heading": id}).Debug("following cursor")
	c.docs.ScrollToHeading(id)
	return nil
}

func (c *Commands) publishBuffer(v *nvim.Nvim) error {
	buf, err := v.CurrentBuffer()
	if err != nil {
		return err
	}

	lines, err := v.BufferLines(buf, 0, -1, true)
	if err != nil {
		return err
	}

	path, err := v.BufferName(buf)
	if err != nil {
		return err
	}
	return c.docs.PublishSource(bytes.Join(lines, []byte("\n")), path)
}
