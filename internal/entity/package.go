package entity

import "github.com/joseph-ayodele/mediclaim/constants"

// IsNoMatch reports whether the item carries the NO_MATCH sentinel.
func (p PackageItem) IsNoMatch() bool {
	return p.PackageCode == constants.NoMatchCode
}

// ApplicableCount is the number of packages that would be claimed: the primary
// (unless it is NO_MATCH) plus every add-on.
func (r PackageRecommendation) ApplicableCount() int {
	n := len(r.AddOnPackages)
	if !r.PrimaryPackage.IsNoMatch() && r.PrimaryPackage.PackageCode != "" {
		n++
	}
	return n
}

// SelectedCodes returns primary (when not NO_MATCH) and add-on codes in order.
func (r PackageRecommendation) SelectedCodes() []string {
	out := make([]string, 0, 1+len(r.AddOnPackages))
	if !r.PrimaryPackage.IsNoMatch() {
		out = append(out, r.PrimaryPackage.PackageCode)
	}
	for _, a := range r.AddOnPackages {
		out = append(out, a.PackageCode)
	}
	return out
}
