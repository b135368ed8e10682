package agents

import (
	"fmt"
	"strings"
)

const planSystemPrompt = `You plan Manim Community Edition scenes for a senior Python developer.
Break the scene description into an ordered list of implementation steps, from setup to the final animation.
Say which objects, animations and transitions each step needs. Do not write code.
Reply with JSON: {"steps": [{"step_id": 1, "description": "..."}]}`

const decomposeSystemPrompt = `You rewrite one step of an animation plan into focused queries for a documentation search.
Reply with JSON: {"code_prompt": "...", "documentation_prompt": "...", "summary_prompt": "..."}`

const generateSystemPromptTemplate = `You are a Python developer who writes Manim Community Edition code.
Write the scene as a single class named %s that inherits from Scene.
Extend the existing code with the current phase only, keeping what is already there.
Keep objects inside the frame (x from -7 to 7, y from -4 to 4), add them to the scene before animating them,
and give each animation a sensible run_time.
Reply with the complete program in one fenced python code block and nothing else.`

const evaluateSystemPrompt = `You review Manim Community Edition code for semantic problems that would spoil the animation.
Check that every object is added to the scene, that placement is sensible and does not overlap without reason,
that animations run in a logical order, that transformations suit the objects involved, and that timing lets the viewer follow.
Reply with JSON: {"evaluation": "retry" or "continue", "feedback": "..."}. Leave feedback empty when you answer continue.`

func generateSystemPrompt(sceneName string) string {
	return fmt.Sprintf(generateSystemPromptTemplate, sceneName)
}

/**
lays out labelled sections, skipping the empty ones
*/
func promptSections(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			continue
		}
		b.WriteString(pairs[i])
		b.WriteString(":\n")
		b.WriteString(pairs[i+1])
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
