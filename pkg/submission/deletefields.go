package submission

import (
	"sort"

	"github.com/ffportal/ffsubmit/pkg/schema"
)

// DeleteFields lists fields which have a value before the edit but none in the outgoing payload.
//
// The portal needs them as `delete_fields` to tell "cleared" from "omitted".
//
// A field is not listed when it is calculated, excluded from forms,
// restricted to admins while the user is not an admin,
// or its second-round flag does not match the round being submitted.
func DeleteFields(s *schema.Schema, before Context, payload map[string]any, opt schema.FilterOption) []string {
	fields := []string{}
	for name, v := range before {
		if isEmpty(v) {
			continue
		}
		if after, ok := payload[name]; ok && !isEmpty(after) {
			continue
		}
		p, ok := s.Properties[name]
		if !ok {
			continue
		}
		if p.CalculatedProperty {
			continue
		}
		if contains(p.ExcludeFrom, schema.ExcludeFromEditCreate) {
			continue
		}
		if p.Permission == schema.PermissionImportItems && !opt.IsAdmin {
			continue
		}
		if (p.FFFlag == schema.FlagSecondRound) != opt.RoundTwo {
			continue
		}
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

func contains(sli []string, s string) bool {
	for _, v := range sli {
		if v == s {
			return true
		}
	}
	return false
}
