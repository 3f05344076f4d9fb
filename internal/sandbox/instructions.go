package sandbox

import "context"

const cppInstructions = `C++ execution is not available in the sandbox.

To run this code:
1. Install a C++ compiler (g++, clang++)
2. Save code to a .cpp file
3. Compile: g++ -o program filename.cpp
4. Run: ./program

Or use online compilers like:
- https://www.onlinegdb.com/
- https://replit.com/
- https://godbolt.org/`

const javaInstructions = `Java execution is not available in the sandbox.

To run this code:
1. Install Java JDK
2. Save code to a .java file
3. Compile: javac filename.java
4. Run: java ClassName

Or use online compilers like:
- https://www.jdoodle.com/
- https://replit.com/
- https://www.tutorialspoint.com/compile_java_online.php`

// Instructions is a strategy for languages with no executor: it returns
// fixed text explaining how to run the code locally.
type Instructions struct {
	language Language
	text     string
}

func NewCPPInstructions() *Instructions {
	return &Instructions{language: LanguageCPP, text: cppInstructions}
}

func NewJavaInstructions() *Instructions {
	return &Instructions{language: LanguageJava, text: javaInstructions}
}

func (i *Instructions) Language() Language {
	return i.language
}

func (i *Instructions) Execute(context.Context, string) (string, error) {
	return i.text, nil
}
