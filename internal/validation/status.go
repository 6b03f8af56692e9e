package validation

import (
	"context"
	"fmt"

	"pkt.systems/apivar/internal/model"
)

type statusValidator struct {
	def model.StatusValidation
}

func (v *statusValidator) Validate(ctx context.Context, groups []ResponseGroup) error {
	target := v.def.TargetOf()
	selected, err := Select(target, groups)
	if err != nil {
		return err
	}
	_, all := target.(model.AllTarget)
	for _, g := range selected {
		for _, e := range g.Entries {
			if e.Response.Code == v.def.Status {
				continue
			}
			if all {
				return fmt.Errorf("%w: status %d does not match expected status %d for variant %s",
					ErrStatus, e.Response.Code, v.def.Status, e.Variant)
			}
			return fmt.Errorf("%w: status %d does not match expected status %d for variant %s request with index %d",
				ErrStatus, e.Response.Code, v.def.Status, e.Variant, g.Index)
		}
	}
	return nil
}
