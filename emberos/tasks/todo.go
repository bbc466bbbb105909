package tasks

import (
	"fmt"
	"strconv"
	"strings"

	"ember/emberos/services/shell"
)

const (
	todoSlots   = 2
	todoTextMax = 14
)

type todoItem struct {
	text string
	done bool
}

// Todo is the two-slot task list. Items survive leaving and re-entering
// the app.
type Todo struct {
	items [todoSlots]todoItem
	n     int
}

func NewTodo() *Todo { return &Todo{} }

func (td *Todo) Name() string { return "todo" }
func (td *Todo) Desc() string { return fmt.Sprintf("Task list (max %d tasks).", todoSlots) }

func (td *Todo) Commands() []shell.Command {
	return []shell.Command{
		{Name: "list", Usage: "list", Desc: "Show all tasks.", Run: td.cmdList},
		{Name: "add", Usage: "add <task>", Desc: "Add a task.", Min: 1, Max: -1, Run: td.cmdAdd},
		{Name: "done", Usage: "done <n>", Desc: "Mark a task complete.", Min: 1, Max: 1, Run: td.cmdDone},
		{Name: "del", Usage: "del <n>", Desc: "Delete a task.", Min: 1, Max: 1, Run: td.cmdDel},
	}
}

func (td *Todo) Start(s *shell.Session) error {
	s.Print("todo: 'list', 'add <task>', 'done <n>', 'del <n>', 'stop' to exit.\n")
	return nil
}

func (td *Todo) Stop(s *shell.Session) {
	s.Print("todo closed.\n")
}

func (td *Todo) cmdList(s *shell.Session, _ []string) error {
	if td.n == 0 {
		s.Print("no tasks.\n")
		return nil
	}
	for i := 0; i < td.n; i++ {
		mark := byte(' ')
		if td.items[i].done {
			mark = 'x'
		}
		s.Printf("%d. [%c] %s\n", i+1, mark, td.items[i].text)
	}
	return nil
}

func (td *Todo) cmdAdd(s *shell.Session, args []string) error {
	if td.n >= todoSlots {
		s.Printf("list full (max %d tasks).\n", todoSlots)
		return nil
	}
	text := strings.Join(args, " ")
	if len(text) > todoTextMax {
		text = text[:todoTextMax]
	}
	td.items[td.n] = todoItem{text: text}
	td.n++
	s.Printf("task %d added.\n", td.n)
	return nil
}

func (td *Todo) cmdDone(s *shell.Session, args []string) error {
	i, err := td.slot(args[0])
	if err != nil {
		return err
	}
	td.items[i].done = true
	s.Printf("task %d marked done.\n", i+1)
	return nil
}

func (td *Todo) cmdDel(s *shell.Session, args []string) error {
	i, err := td.slot(args[0])
	if err != nil {
		return err
	}
	copy(td.items[i:], td.items[i+1:td.n])
	td.n--
	td.items[td.n] = todoItem{}
	s.Printf("task %d deleted.\n", i+1)
	return nil
}

func (td *Todo) slot(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > td.n {
		return 0, fmt.Errorf("invalid task number %q", arg)
	}
	return n - 1, nil
}
