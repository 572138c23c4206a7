package ingest

import "fmt"

const pdfExtractPrompt = `You are a precise document transcription engine.
Extract ALL text from the attached PDF document.
- Before each page's content, emit a marker line in exactly this format: === PDF PAGE x of y ===
  where x is the page number and y is the total page count.
- Preserve the document structure as markdown: headings, lists, and tables.
- Transcribe text exactly; do not summarize, translate or omit anything.
- If a passage is illegible or unclear, emit [unclear] in its place instead of skipping it.
- Output ONLY the transcription.`

const docxExtractPrompt = `You are a precise document transcription engine.
Extract ALL text from the attached Word document, preserving its structure:
- Headings become markdown headings of matching level.
- Bulleted and numbered lists stay lists.
- Tables become markdown tables.
- Bold and italic formatting is preserved.
- Transcribe text exactly; do not summarize or omit anything.
- If a passage is illegible or unclear, emit [unclear] in its place.
- Output ONLY the transcription.`

func pdfBatchPrompt(startPage, endPage, totalPages int) string {
	return fmt.Sprintf(`%s

Only transcribe pages %d through %d (inclusive) of this %d-page document. Skip all other pages.`,
		pdfExtractPrompt, startPage, endPage, totalPages)
}
