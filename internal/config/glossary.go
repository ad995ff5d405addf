package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Glossary 术语表：翻译时必须使用的固定译法
type Glossary struct {
	SourceLang   string            `toml:"source_lang"`
	TargetLang   string            `toml:"target_lang"`
	Translations map[string]string `toml:"translations"`
}

func NewGlossary(sourceLang, targetLang string, translations map[string]string) *Glossary {
	return &Glossary{
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		Translations: translations,
	}
}

// LoadGlossary 从 TOML 文件加载术语表
func LoadGlossary(path string) (*Glossary, error) {
	// check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("glossary file not found: %s", path)
	}

	// load toml file
	glossary := &Glossary{}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}
	if err := toml.Unmarshal(content, glossary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal glossary: %w", err)
	}
	if glossary.SourceLang == "" || glossary.TargetLang == "" {
		return nil, fmt.Errorf("glossary file is missing source_lang or target_lang")
	}
	return glossary, nil
}
