package image

import "strings"

// DefaultAspectRatio is the output framing requested from the edit service.
const DefaultAspectRatio = "9:16"

// EditPrompt tells the model which image supplies identity and which supplies
// clothing. The base image is always sent before the outfit image.
const EditPrompt = `Use the BASE IMAGE as the strict source of identity, pose, camera angle, lighting, and background.
Edit ONLY the clothing to match the exact outfit from the OUTFIT IMAGE.

Requirements:
- Keep the original face identity, hair, skin tone, expression, and body proportions exactly as in the base image.
- Keep the same background and environment as the base image.
- Replace clothing (and shoes/accessories if present in outfit) to match the outfit image exactly: same design, silhouette, color, fabric, patterns, seams, buttons/zippers. Any logos or text on the outfit should be removed or made blank.
- Photorealistic fabric behavior: correct drape, folds, shadows, and texture.
- No distortion, no deformation, no clipping.
- Full-body framing consistent with the base image.
- Output: 9:16 aspect ratio, 8K resolution quality, ultra realistic.
- No text, no watermark, no branding.`

// NegativePrompt captures artefacts the model must avoid.
const NegativePrompt = `AVOID the following: face change, identity change, different person, beautified face, altered facial features, altered skin tone, background change, new location, cropped head, extra limbs, bad hands, bad feet, broken anatomy, warped body, stretched background, deformed clothing, melted fabric, clipping, transparent clothes, wrong outfit, inaccurate pattern, wrong color, incorrect silhouette, text, logo, watermark, brand name, caption, UI elements, artifacts, blur, lowres, noise.`

// BuildEditPrompt joins the edit instruction and the negative prompt.
func BuildEditPrompt() string {
	return strings.Join([]string{EditPrompt, NegativePrompt}, "\n\n")
}
