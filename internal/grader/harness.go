package grader

import "fmt"

// Submissions follow one convention across every language: the user's code
// defines a solve function taking the raw test input as a string and
// returning the answer as a string. BuildFiles attaches the per-language
// driver that reads stdin, calls solve, and prints the result, so grading
// only ever has to compare stdout.

const goDriver = `package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(solve(string(data)))
}
`

const pythonDriver = `

if __name__ == "__main__":
    import sys
    print(solve(sys.stdin.read()))
`

const javascriptDriver = `

const __input = require("fs").readFileSync(0, "utf8");
console.log(solve(__input));
`

const javaDriver = `import java.nio.charset.StandardCharsets;

public class Main {
    public static void main(String[] args) throws Exception {
        byte[] data = System.in.readAllBytes();
        String input = new String(data, StandardCharsets.UTF_8);
        System.out.println(Solution.solve(input));
    }
}
`

const cDriver = `#include <stdio.h>
#include <stdlib.h>

char *solve(const char *input);

int main(void) {
    size_t cap = 1 << 16, len = 0, n;
    char *buf = malloc(cap);
    if (buf == NULL) return 1;
    while ((n = fread(buf + len, 1, cap - len - 1, stdin)) > 0) {
        len += n;
        if (len + 1 >= cap) {
            cap *= 2;
            buf = realloc(buf, cap);
            if (buf == NULL) return 1;
        }
    }
    buf[len] = '\0';
    printf("%s\n", solve(buf));
    return 0;
}
`

const cppDriver = `#include <iostream>
#include <sstream>
#include <string>

std::string solve(const std::string &input);

int main() {
    std::ostringstream ss;
    ss << std::cin.rdbuf();
    std::cout << solve(ss.str()) << std::endl;
    return 0;
}
`

// BuildFiles lays out the submission and its driver for one language.
func BuildFiles(lang Language, code string) (map[string]string, error) {
	spec, ok := Specs()[lang]
	if !ok {
		return nil, fmt.Errorf("no spec for language %s", lang)
	}

	files := make(map[string]string)
	for name, content := range spec.ExtraFiles {
		files[name] = content
	}

	switch lang {
	case LanguageGo:
		files[spec.SourceFile] = code
		files["main.go"] = goDriver
	case LanguagePython:
		files[spec.SourceFile] = code + pythonDriver
	case LanguageJavaScript:
		files[spec.SourceFile] = code + javascriptDriver
	case LanguageJava:
		files[spec.SourceFile] = code
		files["Main.java"] = javaDriver
	case LanguageC:
		files[spec.SourceFile] = code
		files["main.c"] = cDriver
	case LanguageCPP:
		files[spec.SourceFile] = code
		files["main.cpp"] = cppDriver
	default:
		return nil, fmt.Errorf("no harness for language %s", lang)
	}

	return files, nil
}
