package worker

import (
	"fmt"
	"html/template"
	"strings"

	"talentbridge/internal/resume"
)

// resumeTemplateString 是导出 PDF 的 Go HTML 模板。
// 单栏排版，页面尺寸交给打印参数（A4），分页由浏览器处理。
const resumeTemplateString = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            margin: 0;
            padding: 36px 44px;
            font-family: 'Helvetica Neue', Arial, sans-serif;
            font-size: 10.5pt;
            color: #1d1d1f;
            line-height: 1.45;
        }
        h1 {
            font-size: 20pt;
            margin: 0;
        }
        .headline {
            font-size: 11pt;
            color: #555;
            margin: 2px 0 6px;
        }
        .contact {
            font-size: 9pt;
            color: #666;
        }
        .contact span + span::before {
            content: " · ";
        }
        .section {
            margin-top: 18px;
        }
        .section > h2 {
            font-size: 11pt;
            text-transform: uppercase;
            letter-spacing: 1px;
            border-bottom: 1px solid #d0d0d0;
            padding-bottom: 3px;
            margin: 0 0 8px;
        }
        .entry {
            margin-bottom: 10px;
            page-break-inside: avoid;
        }
        .entry-head {
            display: flex;
            justify-content: space-between;
        }
        .entry-title {
            font-weight: 600;
        }
        .entry-dates {
            font-size: 9pt;
            color: #666;
            white-space: nowrap;
        }
        .entry-sub {
            font-size: 9.5pt;
            color: #444;
        }
        .entry-desc {
            margin-top: 3px;
            white-space: pre-wrap;
        }
        .skills dt {
            font-weight: 600;
            float: left;
            clear: left;
            width: 110px;
        }
        .skills dd {
            margin: 0 0 4px 120px;
        }
        .summary {
            margin-top: 12px;
            white-space: pre-wrap;
        }
    </style>
</head>
<body>
    <h1>{{.Basics.FullName}}</h1>
    {{if .Basics.Headline}}<div class="headline">{{.Basics.Headline}}</div>{{end}}
    <div class="contact">
        {{if .Basics.Email}}<span>{{.Basics.Email}}</span>{{end}}
        {{if .Basics.Phone}}<span>{{.Basics.Phone}}</span>{{end}}
        {{if .Basics.Location}}<span>{{.Basics.Location}}</span>{{end}}
        {{if .Basics.Website}}<span>{{.Basics.Website}}</span>{{end}}
    </div>
    {{if .Basics.Summary}}<div class="summary">{{.Basics.Summary}}</div>{{end}}

    {{if .Experience}}
    <div class="section">
        <h2>Experience</h2>
        {{range .Experience}}
        <div class="entry">
            <div class="entry-head">
                <span class="entry-title">{{.Position}}</span>
                <span class="entry-dates">{{dateRange .StartDate .EndDate .Current}}</span>
            </div>
            <div class="entry-sub">{{.Company}}{{if .Location}} — {{.Location}}{{end}}</div>
            {{if .Description}}<div class="entry-desc">{{.Description}}</div>{{end}}
        </div>
        {{end}}
    </div>
    {{end}}

    {{if .Education}}
    <div class="section">
        <h2>Education</h2>
        {{range .Education}}
        <div class="entry">
            <div class="entry-head">
                <span class="entry-title">{{.School}}</span>
                <span class="entry-dates">{{dateRange .StartDate .EndDate .Current}}</span>
            </div>
            <div class="entry-sub">{{.Degree}}{{if .Field}}, {{.Field}}{{end}}{{if .GPA}} (GPA {{.GPA}}){{end}}</div>
        </div>
        {{end}}
    </div>
    {{end}}

    {{if .Projects}}
    <div class="section">
        <h2>Projects</h2>
        {{range .Projects}}
        <div class="entry">
            <div class="entry-head">
                <span class="entry-title">{{.Name}}</span>
                {{if .Technologies}}<span class="entry-dates">{{joinSkills .Technologies}}</span>{{end}}
            </div>
            {{if .Description}}<div class="entry-desc">{{.Description}}</div>{{end}}
            {{if .URL}}<div class="entry-sub">{{.URL}}</div>{{end}}
        </div>
        {{end}}
    </div>
    {{end}}

    {{if hasSkills .Skills}}
    <div class="section">
        <h2>Skills</h2>
        <dl class="skills">
            {{if .Skills.Technical}}<dt>Technical</dt><dd>{{joinSkills .Skills.Technical}}</dd>{{end}}
            {{if .Skills.Soft}}<dt>Soft</dt><dd>{{joinSkills .Skills.Soft}}</dd>{{end}}
            {{if .Skills.Languages}}<dt>Languages</dt><dd>{{joinSkills .Skills.Languages}}</dd>{{end}}
            {{if .Skills.Certifications}}<dt>Certifications</dt><dd>{{joinSkills .Skills.Certifications}}</dd>{{end}}
        </dl>
    </div>
    {{end}}
</body>
</html>
`

var resumeTemplate = template.Must(template.New("resume").Funcs(template.FuncMap{
	"dateRange": func(start, end string, current bool) string {
		switch {
		case current && start != "":
			return fmt.Sprintf("%s – Present", start)
		case start != "" && end != "":
			return fmt.Sprintf("%s – %s", start, end)
		case start != "":
			return start
		default:
			return end
		}
	},
	"joinSkills": func(items []string) string {
		return strings.Join(items, ", ")
	},
	"hasSkills": func(g resume.SkillGroups) bool {
		return len(g.Technical)+len(g.Soft)+len(g.Languages)+len(g.Certifications) > 0
	},
}).Parse(resumeTemplateString))

// renderResumeHTML 把结构化简历内容渲染为待打印的 HTML。
func renderResumeHTML(content resume.Content) (string, error) {
	var sb strings.Builder
	if err := resumeTemplate.Execute(&sb, content); err != nil {
		return "", fmt.Errorf("execute resume template: %w", err)
	}
	return sb.String(), nil
}
