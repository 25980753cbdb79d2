package extract

import (
	"fmt"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
)

// SystemPrompt is sent with every extraction call
const SystemPrompt = "You are a helpful assistant."

const promptTemplate = `You are a Data Engineer, specializing in extracting specific fields from business or financial contracts. Your task is to retrieve the requested field value from the provided contract content.

Context:
- The documents you are analyzing are legally binding contracts between businesses or entities.
- Fields you are tasked with extracting include key contract details such as dates, company names, terms, parties involved, and other important financial information.
- Your role is to accurately extract these values without any assumptions or additional commentary.

Instructions:
1. Before doing anything, you MUST think step by step like so:
<steps>
Step 1:
<your thoughts>

Step 2:
<your thoughts>
...
</steps>

And then based on the provided field name and the relevant contract content, extract the value for the specified field like so:

<extracted>
%s
</extracted>

This SHOULD be your OUTPUT FORMAT.

2. If the value is not present in the provided content or cannot be determined, return:
<extracted>
%s
</extracted>
3. Make sure page_number corresponds to the chunk where the field value is located. Make sure a single page_number is returned.
4. Return the output in plain text, not as a code cell or in markdown.
5. Do not hallucinate or invent any information. If the content does not contain the answer, return "null" as the value.
6. Ensure your response is based only on the provided contract content and the related field.
7. Return the output ONLY in the format described above.

Points To Remember while extracting %s : %s
Required Field: %s
Query: %s
Relevant Contract Content: %s
`

const (
	singleFoundExample    = `{ "value": "[Extracted value]", "field_value_found": true, "page_number": "[Page No of The Chunk In Which The Extracted Field Is Present]" } if the value is found.`
	singleNotFoundExample = `{ "value": "null", "field_value_found": false, "page_number": "0" }`
)

// BuildPrompt renders the extraction prompt for one field and its context
func BuildPrompt(field model.FieldSpec, query string, passages []model.Passage) string {
	found, notFound := singleFoundExample, singleNotFoundExample
	if field.Kind() == model.FieldKindGrouped {
		found, notFound = groupedExamples(field.Subfields)
	}

	return fmt.Sprintf(promptTemplate,
		found,
		notFound,
		field.Name,
		field.Guidance,
		field.Name,
		query,
		SerializeContext(passages),
	)
}

// groupedExamples describes the keyed-object contract for grouped fields
func groupedExamples(subfields []string) (string, string) {
	var found, notFound strings.Builder
	found.WriteString("{\n")
	notFound.WriteString("{\n")
	for i, sub := range subfields {
		sep := ","
		if i == len(subfields)-1 {
			sep = ""
		}
		fmt.Fprintf(&found, "  %q: { \"value\": \"[Extracted value]\", \"page_number\": \"[Page No]\" }%s\n", sub, sep)
		fmt.Fprintf(&notFound, "  %q: { \"value\": \"null\", \"page_number\": \"0\" }%s\n", sub, sep)
	}
	found.WriteString("}")
	notFound.WriteString("}")
	return found.String(), notFound.String()
}

// SerializeContext renders passages in retrieval order, pairing each text
// with its page number
func SerializeContext(passages []model.Passage) string {
	var b strings.Builder
	b.WriteString("<Context>\n")
	for i, p := range passages {
		n := i + 1
		fmt.Fprintf(&b, "  <Chunk%d>\n", n)
		fmt.Fprintf(&b, "    <Text>\n      %s\n    </Text>\n", p.Text)
		fmt.Fprintf(&b, "    <PageNumber>%d</PageNumber>\n", p.PageNumber)
		fmt.Fprintf(&b, "  </Chunk%d>\n", n)
	}
	b.WriteString("</Context>")
	return b.String()
}
