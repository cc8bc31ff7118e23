package prompt

const defaultSystemTemplate = `You are firstfix, an automated contributor that resolves small "good first issue" tickets in open source repositories.

Rules:
1. Make the smallest change that resolves the issue.
2. Preserve the existing code style and conventions of the repository.
3. Never touch CI configuration, secrets, lock files or generated files.
4. Only change files that already exist unless the issue clearly requires a new file.
5. When asked for JSON, reply with JSON only.`

const issueBlock = `{{define "issue"}}<issue>
<repository>{{.Repo}}</repository>
<number>{{.Number}}</number>
<title>{{.Title}}</title>
{{- if .Labels}}
<labels>{{join .Labels ", "}}</labels>
{{- end}}
<body>
{{.Body}}
</body>
{{- if .Comments}}
<comments>
{{- range .Comments}}
<comment author="{{.Author}}">
{{.Body}}
</comment>
{{- end}}
</comments>
{{- end}}
</issue>{{end}}`

const defaultClassifyTemplate = `
Decide whether the following GitHub issue can be resolved by an automated code change to a handful of existing files.

{{template "issue" .Issue}}

<file_tree>
{{.Tree}}</file_tree>

An issue is NOT feasible when it asks for a discussion, a design decision, new infrastructure, access to external services, manual testing, or changes across many files.

Reply with a JSON object:
{"category": "bug" | "docs" | "feature" | "refactor" | "test" | "other", "feasible": true | false, "reason": "one sentence"}`

const defaultPlanTemplate = `
Plan the fix for this GitHub issue.

{{template "issue" .Issue}}

<file_tree>
{{.Tree}}</file_tree>

Select the files from the file tree that must be modified to resolve the issue.
{{- if .MaxFiles}} Select at most {{.MaxFiles}} files.{{end}}
Use paths exactly as they appear in the file tree.

Reply with a JSON object:
{"files": ["path/one", "path/two"], "rationale": "what will change in each file and why"}`

const defaultImplementTemplate = `
Implement the fix for this GitHub issue.

{{template "issue" .Issue}}

<plan>
Files to change:
{{- range .Files}}
- {{.}}
{{- end}}
{{if .Rationale}}
{{.Rationale}}
{{- end}}
</plan>

<source_files>
{{.Sources}}
</source_files>
{{- if .Feedback}}

A reviewer rejected the previous attempt. Address this feedback:
<review_feedback>
{{.Feedback}}
</review_feedback>
{{- end}}

Return the COMPLETE new content of every file you change, in this exact format:
<file path="path/to/file">
<content>
... complete file content ...
</content>
</file>

<summary>
One paragraph describing the change.
</summary>

Only return files listed in the plan. Do not return unchanged files.`

const defaultCritiqueTemplate = `
Review a proposed fix for this GitHub issue.

{{template "issue" .Issue}}
{{- if .Rationale}}

<plan>
{{.Rationale}}
</plan>
{{- end}}

<proposed_changes>
{{- range .Changes}}
<file path="{{.Path}}"{{if .New}} new="true"{{end}}>
{{- if not .New}}
<before>
{{.Original}}
</before>
{{- end}}
<after>
{{.Content}}
</after>
</file>
{{- end}}
</proposed_changes>

Check that the change resolves the issue, is syntactically valid, does not break unrelated behaviour, and does not delete code unnecessarily.

Reply with a JSON object:
{"approved": true | false, "problems": ["..."], "feedback": "concrete instructions for fixing the problems"}`

const defaultPRBodyTemplate = `## Summary

{{if .Summary}}{{.Summary}}{{else}}This pull request addresses #{{.Issue.Number}}.{{end}}
{{- if .Rationale}}

## Approach

{{.Rationale}}
{{- end}}

## Files changed
{{range .Files}}
- ` + "`{{.}}`" + `
{{- end}}
{{- if .Critique}}

## Review notes

{{.Critique}}
{{- end}}

---

Closes #{{.Issue.Number}}

This pull request was drafted automatically by firstfix{{if .Model}} using {{.Model}}{{end}}{{if .Category}} (issue classified as {{.Category}}){{end}}. Please review it carefully before merging.`
