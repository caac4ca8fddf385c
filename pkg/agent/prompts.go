package agent

import (
	"fmt"
	"strings"
)

const defaultSystemPrompt = `You are an assistant operating the "%s" instrument. %s

Use the provided tools to carry out the human's requests. Perform only the operations the human asks for, in the order they ask for them. When a tool returns an error, read it carefully and correct your arguments or the order of operations before retrying. Report results back to the human in plain language.`

const humanInteractionInstructions = `If a request is ambiguous or a required value is missing, use the "human" tool to ask the human operator before acting. Do not guess values the human has not provided.`

const assumeDefaultsInstructions = `If a required value is missing from the request, use the parameter's default value when one exists. Do not ask the human for values that have defaults.`

const documentSearchInstructions = `The "search_documents" tool searches reference documents such as protocols and manuals. Use it when the human asks about procedures or facts you do not know. Pass the citations from the results on to the human.`

// systemPrompt assembles the agent's system message from its
// configuration and memory buffers.
func systemPrompt(base, microserviceName, microserviceDesc string, opts promptOptions) string {
	var b strings.Builder

	if base != "" {
		b.WriteString(base)
	} else {
		fmt.Fprintf(&b, defaultSystemPrompt, microserviceName, microserviceDesc)
	}

	if opts.humanInteraction {
		b.WriteString("\n\n")
		b.WriteString(humanInteractionInstructions)
	}
	if opts.assumeDefaults {
		b.WriteString("\n\n")
		b.WriteString(assumeDefaultsInstructions)
	}
	if opts.documentSearch {
		b.WriteString("\n\n")
		b.WriteString(documentSearchInstructions)
	}

	if opts.actionLog != "" {
		b.WriteString("\n\nRecord of operations already performed on the instrument:\n")
		b.WriteString(opts.actionLog)
	}

	return b.String()
}

type promptOptions struct {
	humanInteraction bool
	assumeDefaults   bool
	documentSearch   bool
	actionLog        string
}
