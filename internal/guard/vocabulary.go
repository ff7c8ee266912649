package guard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultKeywords returns the built-in CBT vocabulary. A fresh slice is
// returned on every call.
func DefaultKeywords() []string {
	return []string{
		"anxiety", "anxious", "stress", "depression", "thought", "emotion", "feeling",
		"coping", "mindfulness", "panic", "self-esteem", "negative thinking", "cognitive",
		"behavior", "mood", "worry", "cbt", "therapy", "journaling", "therapist",
		"psychologist", "mental health", "trauma", "triggers", "hopeless", "self-worth",
		"confidence", "resilience", "healing", "meditation", "breathing exercise",
		"affirmations", "self-care", "intrusive thoughts", "inner critic", "rumination",
		"distorted thoughts", "emotional regulation", "panic attack", "grounding techniques",
		"stress relief", "self-talk", "positive mindset", "gratitude journal",
		"emotional intelligence", "coping strategies", "thought record", "exposure therapy",
		"phobia", "fear", "relaxation", "distress tolerance", "self-harm prevention",
		"journaling prompts", "self talk", "emotions", "feelings", "thoughts", "behaviors",
		"overthinking", "automatic thoughts", "self-image", "self-concept", "self-perception",
		"irritability", "hopelessness", "helplessness", "motivation", "goal", "breathe",
		"coping skills", "mood tracker", "emotion regulation", "grounding", "acceptance",
		"validation", "support", "support system", "friend", "loneliness", "relationship",
		"assertiveness", "boundaries", "problem solving", "goal setting", "habit", "routine",
		"change", "challenge", "resilient", "progress", "hope", "growth", "positive thinking",
		"gratitude", "values", "wellness", "burnout", "flashback", "avoidance", "exposure",
		"acceptance and commitment", "emotional pain", "emotional support",
		"social support", "motivate", "encourage", "comfort", "compassion", "kindness",
		"judgment", "criticism", "blame", "guilt", "shame", "regret", "pain", "suffering",
		"challenge your thoughts", "dispute thoughts", "catastrophizing",
		"black and white thinking", "all or nothing", "should statements", "personalization",
		"labeling", "mind reading", "fortune telling", "overgeneralization", "minimization",
		"magnification", "emotional reasoning", "cognitive distortion", "core belief",
		"schema", "internal dialogue", "negative self talk", "positive self talk",
		"affirmation", "mantra", "visualization", "systematic desensitization",
		"behavioral activation", "trigger", "safety behavior", "avoidant", "maladaptive",
		"adaptive", "accept", "acknowledge", "reframe", "challenge belief",
		"alternative thought", "balanced thought", "functional thinking",
		"thought restructuring", "perspective", "reflection", "growth mindset", "strength",
		"vulnerability", "breakdown", "crisis", "emotion chart", "safety plan", "emergency",
		"insomnia", "sleep hygiene", "fatigue", "energy", "helpless", "worthless",
		"not good enough", "failure", "useless", "burden", "focus", "attention", "distraction",
		"compulsion", "obsession", "avoid", "cope", "reassurance", "reassurance seeking",
		"social anxiety", "isolation", "lonely", "connected", "belonging", "identity",
		"purpose", "meaning", "future", "past", "present", "awareness", "check-in",
		"emotional check-in", "de-stress", "calm down", "soothe", "anchor",
		"managing emotions", "insight", "introspection", "processing", "express", "vent",
		"talk", "listen", "understand", "empathy", "unhelpful thought", "balanced thinking",
		"mental filter", "bias", "filtering", "labels", "narrative", "self-reflection",
		"mind-body", "nervous system", "fight or flight", "freeze", "emotional brain",
		"rational mind", "wise mind", "self-harm", "self-destructive", "urge", "craving",
		"obsessive thoughts", "impulse control", "anger", "frustration", "resentment",
		"irritated", "overwhelmed", "tired", "exhausted", "numb", "stuck", "pressure",
		"expectations", "perfectionism", "comparison", "shame spiral", "inner child",
		"compassionate self", "trauma response", "hypervigilance", "flashbacks", "body scan",
		"relaxation exercise", "deep breathing", "belly breathing", "box breathing",
		"counting breath", "5-4-3-2-1 technique", "safe place", "emotional anchor",
		"meditative", "visual imagery", "walking", "movement", "exercise", "sunlight",
		"hydration", "nutrition", "journaling routine", "mood diary", "emotion log",
		"thought challenge worksheet", "belief log", "emotion scale", "positive behavior",
		"well-being", "hopeful", "future plan", "meaningful goals", "intrinsic motivation",
		"external motivation", "reinforcement", "reward", "habit tracker", "accountability",
		"therapeutic homework", "session", "psychoeducation", "self-monitoring",
		"relapse prevention", "anchor phrase", "calming thought", "coping card",
		"therapy note",
	}
}

// LoadPolicy reads a topic policy from a JSON or YAML file. Missing fields
// fall back to DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	var p Policy
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &p); err != nil {
			return Policy{}, fmt.Errorf("failed to unmarshal JSON vocabulary: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Policy{}, fmt.Errorf("failed to unmarshal YAML vocabulary: %w", err)
		}
	default:
		return Policy{}, fmt.Errorf("unsupported vocabulary format: %s (use .json or .yaml)", ext)
	}

	if len(p.Keywords) == 0 {
		p.Keywords = DefaultKeywords()
	}
	if p.Threshold <= 0 {
		p.Threshold = DefaultThreshold
	}
	return p, nil
}
