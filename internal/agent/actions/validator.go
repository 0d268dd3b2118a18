package actions

import (
	"fmt"

	"github.com/chative/botcore/internal/agent/model"
)

type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func (v *Validation) fail(format string, args ...any) {
	v.Valid = false
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// ValidateRequest runs every check and accumulates the failures: enabled,
// caller permission, required params, request id, handler.
func ValidateRequest(def Definition, req model.ActionRequest, ec ExecutionContext) Validation {
	v := Validation{Valid: true}
	if !def.Enabled {
		v.fail("action %s is disabled", def.Name)
	}
	if ec.Permission < def.Permission {
		v.fail("action %s requires %s permission, caller has %s", def.Name, def.Permission, ec.Permission)
	}
	for _, p := range def.RequiredParams {
		if _, ok := req.Params[p]; !ok {
			v.fail("missing required parameter %s", p)
		}
	}
	if req.ID == "" {
		v.fail("request id is required")
	}
	if def.Handler == nil {
		v.fail("action %s has no handler", def.Name)
	}
	return v
}

// ValidateResult checks a result against the action's declared shape.
func ValidateResult(def Definition, res model.ActionResult) Validation {
	v := Validation{Valid: true}
	if !res.Success && res.Error == "" {
		v.fail("failed result for %s carries no error", def.Name)
	}
	if res.Success && def.ReturnsData && res.Result == nil {
		v.fail("action %s returns data but result is empty", def.Name)
	}
	return v
}
