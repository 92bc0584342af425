package presentation

import (
	"fmt"
	"strings"

	"github.com/hyperjump/shiryo/internal/models"
)

var outlineDetail = map[string]string{
	models.DetailBeginner:     "Focus on main concepts and key points. Use simple language and avoid technical jargon.",
	models.DetailIntermediate: "Provide moderate depth with context. Balance technical terms with explanations.",
	models.DetailProfessional: "Use professional terminology and provide comprehensive detail and examples.",
}

var slideDetail = map[string]string{
	models.DetailBeginner:     "Use simple, clear language. Explain technical terms. Keep content easy to understand.",
	models.DetailIntermediate: "Use professional language with context. Balance detail with clarity.",
	models.DetailProfessional: "Use technical terminology. Include comprehensive details and examples.",
}

func detailGuide(guides map[string]string, level string) string {
	if g, ok := guides[level]; ok {
		return g
	}
	return guides[models.DetailIntermediate]
}

func topicListPrompt(title, sample string) string {
	return fmt.Sprintf(`You are a financial document analyzer. Extract COMPREHENSIVE list of topics from this document using ALL of these approaches:

DOCUMENT TITLE: %s

DOCUMENT CONTENT:
---
%s
---

EXTRACTION TASK - Use ALL 5 methods simultaneously:
1. STRUCTURAL ANALYSIS: Identify main topics from document structure and sections
2. HEADINGS ANALYSIS: Extract topics from section titles and headers
3. KEYWORD EXTRACTION: Find important financial terms and product names
4. SECTION PATTERNS: Look for numbered items, bullet sections, and organized topics
5. SEMANTIC CLUSTERING: Group related topics and remove duplicates automatically

OUTPUT REQUIREMENTS:
- Extract 12-15 UNIQUE topics (not names, actual topics/products/services)
- Each topic should be distinct and important
- Remove ALL duplicates (if "Loan" and "Loans" appear, keep only one)
- Rank by importance/frequency - put most important first
- Be specific: "Solar Panel Loans" not "Energy Finance"
- Focus on financial products, services, features, and key concepts from the document

RETURN FORMAT:
Return ONLY a numbered list (no other text):
1. Topic Name
2. Topic Name
3. Topic Name
...and so on

Topics must be EXACT or VERY CLOSE to how they appear in the document.`, title, sample)
}

func outlinePrompt(title, source, detail string) string {
	return fmt.Sprintf(`# ROLE: You are a Financial Content Analyzer. Extract ONLY factual information from the provided document.

# **CRITICAL INSTRUCTION - TITLES MUST BE EXACT**:
You MUST ONLY extract information that explicitly appears in the document below.
DO NOT invent, assume, or hallucinate any facts.
DO NOT add common banking practices that aren't mentioned.
DO NOT rename or rephrase titles - USE EXACT TITLES FROM THE DOCUMENT.
If information is not in the document, do not include it.

# DETAIL LEVEL: %s
%s

# CONTEXT
- The presentation is about: "%s"
- The document contains details about different products, services, or topics.
- Extract only what is actually stated in the text below.
- **IMPORTANT**: Topic titles must be EXACT matches from the document - do not generalize or rename them
- **IMPORTANT**: Extract ALL related facts and information for each topic - do not leave anything out

# SOURCE DOCUMENT (COMPLETE TEXT)
---
%s
---

# YOUR TASK
1. Identify all distinct topics/products/services that are EXPLICITLY MENTIONED in the document
2. For EACH topic, use the EXACT title as it appears in the document - do NOT rename it
3. Extract ALL key points that are DIRECTLY STATED in the source text for that topic
4. Be comprehensive - include ALL relevant facts, features, terms, conditions, requirements, benefits, etc.
5. Do NOT omit any information about a topic that appears in the document
6. IMPORTANT: Only include facts that appear in the document above
7. Maximum 7-8 key points per topic (quality over quantity) - but prioritize COMPLETENESS over brevity
8. Output ONLY valid JSON

# CRITICAL TITLE RULES:
- If the document says "Solar Panel Loans", use EXACTLY "Solar Panel Loans"
- If the document says "Current Account", use EXACTLY "Current Account"
- Do NOT create new titles like "Renewable Energy and Insurance" when the actual title is "Solar Panel Loans"
- Match the EXACT wording from the document section headers

# CRITICAL FACT EXTRACTION RULES:
- Extract EVERY fact mentioned about each topic in the document section
- Do NOT skip information thinking it's "obvious" or "common knowledge"
- Include: amounts, rates, periods, conditions, eligibility, features, benefits, documents needed, fees, etc.
- If the topic mentions multiple things, extract ALL of them
- Do NOT prioritize - include everything, just ensure each fact is clear and complete

# JSON OUTPUT RULES
- Root key: "topics"
- Array of objects with "title" and "key_points" (array of strings)
- title MUST be the exact title as it appears in the document
- key_points must include ALL specific facts that appear in the source document for that topic
- Do NOT include assumptions or common knowledge
- Response must be ONLY valid JSON - no other text

# EXAMPLE (if source document talks about these)
{
  "topics": [
    {
      "title": "Personal Loans",
      "key_points": [
        "Loan amount range: EGP 10,000 to 500,000",
        "Repayment period: up to 7 years",
        "Life insurance included",
        "Required documents: ID, income proof"
      ]
    }
  ]
}

IMPORTANT:
- Output ONLY JSON.
- No explanations.
- Every fact must be in the source document.
- TITLES MUST BE EXACT MATCHES FROM THE DOCUMENT.
`, strings.ToUpper(detail), detailGuide(outlineDetail, detail), title, source)
}

func expansionPrompt(points []string, needed int) string {
	var b strings.Builder
	for _, p := range points {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	return fmt.Sprintf(`You have a list of key facts about a financial service. Break these into %d distinct subtopics, each with 3-4 related facts.

Key Facts:
%s
Output ONLY valid JSON with exactly %d subtopics:
{
  "subtopics": [
    {"title": "Subtopic 1", "key_points": ["fact1", "fact2", "fact3"]},
    {"title": "Subtopic 2", "key_points": ["fact1", "fact2"]}
  ]
}

Make each subtopic title distinct and specific.`, needed, b.String(), needed)
}

func slidePrompt(title string, bullets []string, totalSlides int, detail string) string {
	return fmt.Sprintf(`# ROLE: Presentation slide formatter for banking services

# **CRITICAL - MINIMAL HALLUCINATION ALLOWED**:
You MUST use the key points provided below as the foundation.
Do NOT invent or create facts that don't exist in any source material.
However, if the provided bullet points are very few (less than 3), you MAY add 1-2 extra related facts from the document context to make the slide look professionally filled.
These extra points MUST be derived from the document and be directly related to the main topic.

# DETAIL LEVEL: %[1]s
%[2]s

# CONTEXT
User requested %[3]d total slides. This is ONE slide with ONE product/service.
Each slide focuses on a single topic with maximum %[4]d bullet points.
Use the facts provided below, and optionally add 1-2 related document facts if the slide looks too sparse.

# SLIDE CONTENT TO FORMAT
Product/Service Name: "%[5]s"

Key Points (USE THESE AS PRIMARY):
%[6]s

# YOUR TASK - FORMATTING + OPTIONAL ENRICHMENT
1) First line: Main slide title (exactly: "%[5]s")
2) Second line: Empty line
3) Third line: Subtitle in BOLD format using **text** (e.g., "**%[5]s**")
4) Fourth line: Empty line
5) Then: Use the bullet points provided above, formatted with • prefix
6) If you have fewer than 3 bullet points, you MAY add 1-2 extra related facts from the document that fit the topic
7) All points must be factual and document-derived - NO invented facts
8) Do NOT reword the provided points, keep them as-is
9) Just clean up formatting if bullet marker is missing
10) NO narrative text beyond bullets - ONLY formatted facts

# FORMATTING EXAMPLE
%[5]s

**%[5]s**

• For ages 15+
• Professional benefits and features
• Special rates available

Output the formatted slide now. Keep it professional and well-balanced, not sparse.
`, strings.ToUpper(detail), detailGuide(slideDetail, detail), totalSlides, MaxBullets, title, strings.Join(bullets, "\n"))
}
