package email

import "testing"

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "substitutes all markers",
			template: "Hola {{studentName}}, tu clase es el {{date}} a las {{time}}.",
			vars:     map[string]string{"studentName": "Ana", "date": "lunes 2 de marzo", "time": "10:00"},
			want:     "Hola Ana, tu clase es el lunes 2 de marzo a las 10:00.",
		},
		{
			name:     "repeated marker",
			template: "{{name}} y {{name}}",
			vars:     map[string]string{"name": "Ana"},
			want:     "Ana y Ana",
		},
		{
			name:     "unknown marker left alone",
			template: "Hola {{studentName}}, link: {{meetUrl}}",
			vars:     map[string]string{"studentName": "Ana"},
			want:     "Hola Ana, link: {{meetUrl}}",
		},
		{
			name:     "no markers",
			template: "plain text",
			vars:     map[string]string{"studentName": "Ana"},
			want:     "plain text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderTemplate(tt.template, tt.vars); got != tt.want {
				t.Errorf("RenderTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}
