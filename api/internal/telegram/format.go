package telegram

import (
	"fmt"
	"strings"

	"rice-grader/api/internal/analyze"
	"rice-grader/api/internal/grading/types"
	v1 "rice-grader/api/internal/v1/grading"
	v2 "rice-grader/api/internal/v2/grading"
)

// FormatReport renders a grading report as a plain-text chat message.
func FormatReport(rep *analyze.Report) string {
	grade, ok := rep.Result.Graded()
	if !ok {
		return "⚠️ " + types.NoGrainsMessage + ". Try a sharper photo with the grains spread out."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌾 Grade: %s\n", grade)
	fmt.Fprintf(&b, "Model: %s\n\n", rep.ModelVersion)

	switch res := rep.Result.(type) {
	case v1.Result:
		line(&b, "Head rice", res.HeadRicePercent)
		line(&b, "Broken", res.BrokenPercent)
		line(&b, "Discolored", res.DiscoloredPercent)
		fmt.Fprintf(&b, "\nGrains: %d (whole %d, broken %d, discolored %d)\n",
			res.TotalGrains, res.Counts.Whole, res.Counts.Broken, res.Counts.Discolored)
		fmt.Fprintf(&b, "Foreign objects: %d", res.ForeignObjects)
	case v2.Result:
		line(&b, "Head rice", res.HeadRicePercent)
		line(&b, "Broken", res.BrokenPercent)
		line(&b, "Chalky", res.ChalkyPercent)
		line(&b, "Immature", res.ImmaturePercent)
		line(&b, "Discolored", res.DiscoloredPercent)
		fmt.Fprintf(&b, "\nGrains: %d (whole %d, clean %d, broken %d, chalky %d, immature %d, discolored %d)\n",
			res.TotalGrains, res.Counts.Whole, res.Counts.Clean, res.Counts.Broken,
			res.Counts.Chalky, res.Counts.Immature, res.Counts.Discolored)
		fmt.Fprintf(&b, "Foreign objects: %d", res.ForeignObjects)
	default:
		fmt.Fprintf(&b, "Grains: %d", rep.Result.Grains())
	}
	return b.String()
}

func line(b *strings.Builder, name string, p types.Percent) {
	fmt.Fprintf(b, "%s: %s%%\n", name, p)
}
