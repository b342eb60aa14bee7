package runtime

import (
	"fmt"
	"strings"

	"github.com/superstar54/AEP/types"
)

/**
 * RenderDOT draws the graph in graphviz DOT with each task colored by
 * its current state, the quick way to eyeball a stuck or failed run.
 */
func RenderDOT(g *Graph) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := &dagRenderer{sb: &strings.Builder{}}
	r.write("digraph D {")
	r.write("label=%s", quoteString(g.ID))
	for _, t := range g.tasksInOrder() {
		r.drawTask(t)
	}
	for _, l := range g.links {
		r.drawLink(l)
	}
	r.write("}")
	return r.sb.String()
}

type dagRenderer struct {
	sb *strings.Builder
}

func stateColor(s types.TaskState) string {
	switch s {
	case types.TaskRunning, types.TaskWaiting:
		return "yellow"
	case types.TaskFinished:
		return "green"
	case types.TaskFailed:
		return "red"
	case types.TaskSkipped:
		return "grey"
	}
	return "white"
}

func (d *dagRenderer) drawTask(t *Task) {
	label := fmt.Sprintf("%s\\n%v", t.Name, t.State)
	d.write("%s [label=%s shape=\"record\" style=\"filled\" color=\"%s\"]",
		idString(t.Name), quoteString(label), stateColor(t.State))
}

func (d *dagRenderer) drawLink(l Link) {
	label := fmt.Sprintf("%s -> %s", l.SourceSocket, l.TargetSocket)
	d.write("%s -> %s [label=%s]",
		idString(l.SourceTask), idString(l.TargetTask), quoteString(label))
}

func (d *dagRenderer) write(format string, s ...any) {
	d.sb.WriteString(fmt.Sprintf(format+"\n", s...))
}

func quoteString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

var idleChars = []string{" ", "'", "\"", "(", ")", "*", "&", "^", "%", "$", "#", "@", "!", "?", "<", ">", "[", "]", "{", "}", "."}

func idString(s string) string {
	for _, ch := range idleChars {
		s = strings.ReplaceAll(s, ch, "_")
	}
	return s
}
