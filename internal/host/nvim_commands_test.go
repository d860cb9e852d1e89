package host

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocs struct {
	sections map[int]string
	scrolled []string
}

func (d *fakeDocs) URL() string                                  { return "http://127.0.0.1:7777" }
func (d *fakeDocs) PublishSource(text []byte, path string) error { return nil }
func (d *fakeDocs) ScrollToHeading(id string)                    { d.scrolled = append(d.scrolled, id) }

func (d *fakeDocs) HeadingAt(line int) (string, error) {
	id := ""
	for l := 1; l <= line; l++ {
		if s, ok := d.sections[l]; ok {
			id = s
		}
	}
	return id, nil
}

func TestFollowLine_ScrollsOncePerSection(t *testing.T) {
	log, _ := test.NewNullLogger()
	docs := &fakeDocs{sections: map[int]string{3: "title", 10: "sub"}}
	c := NewCommands(docs, log)

	for _, line := range []int{1, 2, 3, 4, 4, 9, 10, 12, 5} {
		require.NoError(t, c.followLine(line))
	}

	assert.Equal(t, []string{"title", "sub", "title"}, docs.scrolled)
}
