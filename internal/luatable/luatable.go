// Package luatable reads and writes the IDs data page: a Lua chunk returning
// a table of sections and a name to position mapping.
package luatable

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Section is one entry of the sections list.
type Section struct {
	Name string
	ID   int
}

// Entry maps one sprite name to its sheet slot.
type Entry struct {
	Pos        int
	Section    int
	Deprecated bool
}

// Table is the decoded IDs page.
type Table struct {
	Sections []Section
	IDs      map[string]Entry
}

// Quote quotes s as a Lua string literal, using whichever of ' and " appears
// less often (' on a tie) and escaping backslashes and the chosen delimiter.
func Quote(s string) string {
	delim := "'"
	if strings.Count(s, "'") > strings.Count(s, `"`) {
		delim = `"`
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, delim, `\`+delim)
	return delim + s + delim
}

// Names returns the table's names in case-insensitive alphabetical order.
func (t Table) Names() []string {
	out := make([]string, 0, len(t.IDs))
	for name := range t.IDs {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// Encode renders the table as page text.
func Encode(t Table) string {
	var b strings.Builder
	b.WriteString("return {\n\tsections = {\n")
	for _, s := range t.Sections {
		fmt.Fprintf(&b, "\t\t{ name = %s, id = %d },\n", Quote(s.Name), s.ID)
	}
	b.WriteString("\t},\n\tids = {\n")
	for _, name := range t.Names() {
		e := t.IDs[name]
		fmt.Fprintf(&b, "\t\t[%s] = { pos = %d, section = %d", Quote(name), e.Pos, e.Section)
		if e.Deprecated {
			b.WriteString(", deprecated = true")
		}
		b.WriteString(" },\n")
	}
	b.WriteString("\t}\n}")
	return b.String()
}

// ErrNotTable is returned when the chunk does not return a table.
var ErrNotTable = errors.New("ids page does not return a table")

const parseTimeout = 2 * time.Second

// Parse evaluates page text in a sandboxed Lua state without standard
// libraries and decodes the returned table. Section entries may be
// { name, id } tables or bare strings, which take their list index as ID.
// Blank names are skipped.
func Parse(src string) (Table, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	ctx, cancel := context.WithTimeout(context.Background(), parseTimeout)
	defer cancel()
	L.SetContext(ctx)

	if err := L.DoString(src); err != nil {
		return Table{}, fmt.Errorf("evaluate ids page: %w", err)
	}
	root, ok := L.Get(-1).(*lua.LTable)
	if !ok {
		return Table{}, ErrNotTable
	}

	out := Table{IDs: make(map[string]Entry)}
	if secs, ok := root.RawGetString("sections").(*lua.LTable); ok {
		for i := 1; i <= secs.Len(); i++ {
			sec, err := parseSection(secs.RawGetInt(i), i)
			if err != nil {
				return Table{}, err
			}
			out.Sections = append(out.Sections, sec)
		}
	}
	ids, ok := root.RawGetString("ids").(*lua.LTable)
	if !ok {
		return out, nil
	}
	var parseErr error
	ids.ForEach(func(k, v lua.LValue) {
		if parseErr != nil {
			return
		}
		name, ok := k.(lua.LString)
		if !ok {
			parseErr = fmt.Errorf("ids key %s is not a string", k.String())
			return
		}
		if strings.TrimSpace(string(name)) == "" {
			return
		}
		fields, ok := v.(*lua.LTable)
		if !ok {
			parseErr = fmt.Errorf("ids[%q] is not a table", string(name))
			return
		}
		entry := Entry{
			Pos:        intField(fields, "pos"),
			Section:    intField(fields, "section"),
			Deprecated: lua.LVAsBool(fields.RawGetString("deprecated")),
		}
		if entry.Pos < 1 {
			parseErr = fmt.Errorf("ids[%q] has no position", string(name))
			return
		}
		out.IDs[string(name)] = entry
	})
	if parseErr != nil {
		return Table{}, parseErr
	}
	return out, nil
}

func parseSection(v lua.LValue, index int) (Section, error) {
	switch sec := v.(type) {
	case lua.LString:
		return Section{Name: string(sec), ID: index}, nil
	case *lua.LTable:
		name, ok := sec.RawGetString("name").(lua.LString)
		if !ok {
			return Section{}, fmt.Errorf("section %d has no name", index)
		}
		id := intField(sec, "id")
		if id < 1 {
			id = index
		}
		return Section{Name: string(name), ID: id}, nil
	default:
		return Section{}, fmt.Errorf("section %d has unexpected type %s", index, v.Type())
	}
}

func intField(t *lua.LTable, field string) int {
	if n, ok := t.RawGetString(field).(lua.LNumber); ok {
		return int(n)
	}
	return 0
}
