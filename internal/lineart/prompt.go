package lineart

import (
	"fmt"
	"strings"

	"server/internal/domain"
)

// Prompt construction is deterministic and table-driven: complexity selects an
// age band and a detail-preservation instruction, thickness selects a stroke
// band at 300 DPI print resolution, and a fixed suffix enforces the output
// contract.

var complexityInstructions = map[domain.Complexity]string{
	domain.ComplexitySimple:   "Design for ages 3-6: large simple regions, minimal detail, bold recognizable shapes. Drop background clutter entirely.",
	domain.ComplexityStandard: "Design for ages 6-10: moderate detail, clear distinct regions, keep the main background elements simplified.",
	domain.ComplexityDetailed: "Design for ages 10 and up: preserve fine detail and background texture, intricate fillable regions throughout.",
}

var thicknessInstructions = map[domain.LineThickness]string{
	domain.LineThin:   "Use thin outlines, approximately 1 to 1.5 pt stroke width at 300 DPI.",
	domain.LineMedium: "Use medium outlines, approximately 2 to 3 pt stroke width at 300 DPI.",
	domain.LineThick:  "Use thick outlines, approximately 3 to 4 pt stroke width at 300 DPI.",
}

const outputContract = "Render as a printable coloring page: pure black strokes on a pure white background, " +
	"no gradients, no shading, no gray fills, every region closed so it can be colored in."

// PromptFor builds the full generation prompt for an original job. The
// optional custom prompt names the subject when no source image is attached,
// or steers the conversion when one is.
func PromptFor(params domain.JobParams) string {
	var parts []string
	custom := strings.TrimSpace(params.CustomPrompt)
	switch {
	case params.SourceAssetID != "" && custom != "":
		parts = append(parts, "Convert the attached photo into black-and-white line art.", custom)
	case params.SourceAssetID != "":
		parts = append(parts, "Convert the attached photo into black-and-white line art.")
	default:
		parts = append(parts, fmt.Sprintf("Draw black-and-white line art of: %s.", custom))
	}
	parts = append(parts,
		complexityInstructions[params.Complexity],
		thicknessInstructions[params.LineThickness],
		outputContract,
	)
	return strings.Join(parts, " ")
}

// EditPromptFor builds the prompt for an edit job. The user's instruction
// leads, followed by the instruction that produced the parent image when
// available, then a directive to keep the overall composition.
func EditPromptFor(params domain.JobParams, parentInstruction string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Modify the attached line-art image: %s.", strings.TrimSpace(params.EditPrompt)))
	if parent := strings.TrimSpace(parentInstruction); parent != "" {
		parts = append(parts, fmt.Sprintf("The image was originally drawn from this instruction: %s.", parent))
	}
	parts = append(parts,
		"Preserve the overall composition and subject placement; change only what the instruction asks for.",
		complexityInstructions[params.Complexity],
		thicknessInstructions[params.LineThickness],
		outputContract,
	)
	return strings.Join(parts, " ")
}
