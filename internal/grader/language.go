package grader

import (
	"fmt"

	"github.com/codequest-dev/codequest/internal/domain"
)

// Language represents a supported submission language.
type Language string

const (
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
)

// IsValid checks if the language is supported.
func (l Language) IsValid() bool {
	switch l {
	case LanguageGo, LanguagePython, LanguageJavaScript, LanguageJava, LanguageC, LanguageCPP:
		return true
	default:
		return false
	}
}

// String returns the language as a string.
func (l Language) String() string {
	return string(l)
}

// ParseLanguage converts a string to a Language.
func ParseLanguage(s string) (Language, error) {
	lang := Language(s)
	if !lang.IsValid() {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, s)
	}
	return lang, nil
}

// LanguageSpec contains everything needed to grade one language: the
// container image, how the submission plus its driver lands on disk, the
// optional compile step, and the run command. RunCmd is a plain shell
// command so test input can be redirected onto stdin.
type LanguageSpec struct {
	DockerImage string
	SourceFile  string
	CompileCmd  []string
	RunCmd      string
	ExtraFiles  map[string]string
}

// Specs returns the grading configuration for all supported languages.
func Specs() map[Language]LanguageSpec {
	return map[Language]LanguageSpec{
		LanguageGo: {
			DockerImage: "golang:1.23-alpine",
			SourceFile:  "solution.go",
			CompileCmd:  []string{"go", "build", "-o", "solution", "."},
			RunCmd:      "./solution",
			ExtraFiles: map[string]string{
				"go.mod": "module solution\n\ngo 1.22\n",
			},
		},
		LanguagePython: {
			DockerImage: "python:3.12-alpine",
			SourceFile:  "solution.py",
			RunCmd:      "python3 solution.py",
		},
		LanguageJavaScript: {
			DockerImage: "node:22-alpine",
			SourceFile:  "solution.js",
			RunCmd:      "node solution.js",
		},
		LanguageJava: {
			DockerImage: "eclipse-temurin:21-alpine",
			SourceFile:  "Solution.java",
			CompileCmd:  []string{"javac", "Main.java", "Solution.java"},
			RunCmd:      "java Main",
		},
		LanguageC: {
			DockerImage: "gcc:13",
			SourceFile:  "solution.c",
			CompileCmd:  []string{"gcc", "-O2", "-o", "solution", "main.c", "solution.c"},
			RunCmd:      "./solution",
		},
		LanguageCPP: {
			DockerImage: "gcc:13",
			SourceFile:  "solution.cpp",
			CompileCmd:  []string{"g++", "-std=c++17", "-O2", "-o", "solution", "main.cpp", "solution.cpp"},
			RunCmd:      "./solution",
		},
	}
}

// SupportedLanguages lists the language identifiers accepted by the API.
func SupportedLanguages() []string {
	return []string{
		string(LanguageGo), string(LanguagePython), string(LanguageJavaScript),
		string(LanguageJava), string(LanguageC), string(LanguageCPP),
	}
}
