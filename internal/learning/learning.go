// Package learning generates curated learning resources for the
// technologies detected in an analyzed repository.
package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/gemini"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// maxTechnologies caps the request so a single prompt stays manageable.
const maxTechnologies = 10

type techInfo struct {
	Icon    string
	Color   string
	Aliases []string
}

// techDatabase maps canonical technology names to display metadata.
var techDatabase = map[string]techInfo{
	"typescript": {Icon: "📘", Color: "#3178c6", Aliases: []string{"ts", "typescript"}},
	"javascript": {Icon: "💛", Color: "#f7df1e", Aliases: []string{"js", "javascript", "node", "nodejs"}},
	"python":     {Icon: "🐍", Color: "#3776ab", Aliases: []string{"py", "python"}},
	"react":      {Icon: "⚛️", Color: "#61dafb", Aliases: []string{"react", "reactjs"}},
	"vue":        {Icon: "💚", Color: "#42b883", Aliases: []string{"vue", "vuejs"}},
	"angular":    {Icon: "🅰️", Color: "#dd0031", Aliases: []string{"angular", "ng"}},
	"fastapi":    {Icon: "⚡", Color: "#009688", Aliases: []string{"fastapi"}},
	"django":     {Icon: "🎸", Color: "#092e20", Aliases: []string{"django"}},
	"flask":      {Icon: "🌶️", Color: "#000000", Aliases: []string{"flask"}},
	"express":    {Icon: "🚂", Color: "#000000", Aliases: []string{"express", "expressjs"}},
	"docker":     {Icon: "🐳", Color: "#2496ed", Aliases: []string{"docker"}},
	"kubernetes": {Icon: "☸️", Color: "#326ce5", Aliases: []string{"k8s", "kubernetes"}},
	"postgresql": {Icon: "🐘", Color: "#336791", Aliases: []string{"postgres", "postgresql", "psql"}},
	"mongodb":    {Icon: "🍃", Color: "#47a248", Aliases: []string{"mongo", "mongodb"}},
	"redis":      {Icon: "🔴", Color: "#dc382d", Aliases: []string{"redis"}},
	"rust":       {Icon: "🦀", Color: "#ce422b", Aliases: []string{"rust", "rs"}},
	"go":         {Icon: "🐹", Color: "#00add8", Aliases: []string{"go", "golang"}},
	"java":       {Icon: "☕", Color: "#007396", Aliases: []string{"java"}},
	"spring":     {Icon: "🍃", Color: "#6db33f", Aliases: []string{"spring", "springboot"}},
	"nextjs":     {Icon: "▲", Color: "#000000", Aliases: []string{"next", "nextjs"}},
	"tailwind":   {Icon: "🌊", Color: "#06b6d4", Aliases: []string{"tailwind", "tailwindcss"}},
	"graphql":    {Icon: "◈", Color: "#e10098", Aliases: []string{"graphql"}},
	"aws":        {Icon: "☁️", Color: "#ff9900", Aliases: []string{"aws", "amazon"}},
	"azure":      {Icon: "☁️", Color: "#0078d4", Aliases: []string{"azure"}},
	"git":        {Icon: "🔀", Color: "#f05032", Aliases: []string{"git"}},
}

// NormalizeTech maps an alias ("golang", "k8s") to its canonical name.
// Unknown technologies come back lowercased.
func NormalizeTech(tech string) string {
	lower := strings.ToLower(strings.TrimSpace(tech))
	for canonical, info := range techDatabase {
		for _, alias := range info.Aliases {
			if lower == alias {
				return canonical
			}
		}
	}
	return lower
}

// TechMetadata returns the icon and color for a technology, with a neutral
// fallback for unknown ones.
func TechMetadata(tech string) (icon, color string) {
	if info, ok := techDatabase[NormalizeTech(tech)]; ok {
		return info.Icon, info.Color
	}
	return "📦", "#6b7280"
}

// Service builds learning responses with Gemini.
type Service struct {
	gemini *gemini.Client
}

// NewService creates a learning service.
func NewService(geminiClient *gemini.Client) *Service {
	return &Service{gemini: geminiClient}
}

// geminiPayload is the JSON shape requested from the model.
type geminiPayload struct {
	Technologies []struct {
		Technology string                      `json:"technology"`
		Summary    string                      `json:"summary"`
		Resources  []protocol.LearningResource `json:"resources"`
	} `json:"technologies"`
}

// Generate produces learning resources for the detected technologies.
// Generation errors surface in the response's Error field, never as a Go
// error; the detected technologies are always echoed back.
func (s *Service) Generate(ctx context.Context, technologies []string, repoContext string) protocol.LearningResponse {
	if len(technologies) == 0 {
		return protocol.LearningResponse{
			LearningResources:    []protocol.TechResources{},
			DetectedTechnologies: []string{},
		}
	}
	if len(technologies) > maxTechnologies {
		technologies = technologies[:maxTechnologies]
	}

	response := protocol.LearningResponse{
		LearningResources:    []protocol.TechResources{},
		DetectedTechnologies: technologies,
	}

	result := s.gemini.Generate(ctx, buildLearningPrompt(technologies, repoContext), gemini.Options{
		Temperature: 0.3,
		JSONOutput:  true,
	})
	if result.Err != nil {
		response.Error = result.Err.Error()
		return response
	}

	var payload geminiPayload
	if err := json.Unmarshal([]byte(stripCodeFences(result.Content)), &payload); err != nil {
		logging.Warn("learning response is not valid JSON", zap.Error(err))
		response.Error = fmt.Sprintf("parsing model response: %v", err)
		return response
	}

	for _, tech := range payload.Technologies {
		icon, color := TechMetadata(tech.Technology)
		resources := tech.Resources
		if resources == nil {
			resources = []protocol.LearningResource{}
		}
		response.LearningResources = append(response.LearningResources, protocol.TechResources{
			Technology: tech.Technology,
			Icon:       icon,
			Color:      color,
			Summary:    tech.Summary,
			Resources:  resources,
		})
	}
	return response
}

// stripCodeFences removes a wrapping markdown code block, which the model
// sometimes emits despite the JSON output instruction.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
