//go:build !no_automation

package automation

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// ErrInvalidScript is returned for scripts that do not compile or define no
// update hook.
var ErrInvalidScript = errors.New("invalid script")

// HookSet lists the update hooks a script defines as globals.
type HookSet struct {
	PreUpdate  bool `json:"pre_update"`
	PostUpdate bool `json:"post_update"`
}

func (h *HookSet) mark(name string) {
	switch name {
	case "pre_update":
		h.PreUpdate = true
	case "post_update":
		h.PostUpdate = true
	}
}

// CheckScript compiles code without running it and reports which hooks it
// defines at top level, either as `function pre_update(ev)` or as
// `pre_update = function(ev) ... end`. Local functions do not count.
func CheckScript(code string) (HookSet, error) {
	var hooks HookSet
	chunk, err := parse.Parse(strings.NewReader(code), "<script>")
	if err != nil {
		return hooks, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if _, err := lua.Compile(chunk, "<script>"); err != nil {
		return hooks, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}

	for _, st := range chunk {
		switch st := st.(type) {
		case *ast.FuncDefStmt:
			if id, ok := st.Name.Func.(*ast.IdentExpr); ok {
				hooks.mark(id.Value)
			}
		case *ast.AssignStmt:
			for i, lhs := range st.Lhs {
				id, ok := lhs.(*ast.IdentExpr)
				if !ok || i >= len(st.Rhs) {
					continue
				}
				if _, ok := st.Rhs[i].(*ast.FunctionExpr); ok {
					hooks.mark(id.Value)
				}
			}
		}
	}
	if !hooks.PreUpdate && !hooks.PostUpdate {
		return hooks, fmt.Errorf("%w: defines neither pre_update nor post_update", ErrInvalidScript)
	}
	return hooks, nil
}
