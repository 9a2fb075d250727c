package schema

// Derive builds the schema of a template derived from base.
//
// No type inference happens: the base schema is copied as is and only the
// required set is recomputed as the base's required labels (in base order)
// that also appear in labels. The base validators are copied unchanged.
// Neither base nor baseValidators is modified.
func Derive(base *Schema, baseValidators Validators, labels []string) (*Schema, Validators) {
	out := base.Clone()
	if out == nil {
		out = &Schema{Type: "object", Properties: map[string]Property{}, Order: []string{}}
	}

	keep := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		keep[l] = struct{}{}
	}

	required := make([]string, 0, len(out.Required))
	for _, r := range out.Required {
		if _, ok := keep[r]; ok {
			required = append(required, r)
		}
	}
	out.Required = required

	return out, baseValidators.Clone()
}
