package classify

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gedworks/archive-cli/pkg/anthropic"
)

type fakeAnthropicClient struct {
	reply string
	err   error
	calls int
	req   anthropic.MessageRequest
}

func (f *fakeAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Model:   req.Model,
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}},
	}, nil
}

func testAssist(client anthropic.Client) *AssistedClassifier {
	return NewAssistedClassifier(client, "claude-haiku-4-5-20251001", 500, 30*time.Second, 100)
}

func TestParseProposal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Proposal
		wantErr bool
	}{
		{
			name: "raw JSON object",
			raw:  `{"category": "URBANISME", "subcategory": "Permis_Construire", "reason": "Building permit."}`,
			want: &Proposal{Category: "URBANISME", Subcategory: "Permis_Construire", Rationale: "Building permit."},
		},
		{
			name: "fenced json block",
			raw:  "```json\n{\"category\": \"MEDICAL\", \"subcategory\": \"Ordonnances\", \"reason\": \"Prescription.\"}\n```",
			want: &Proposal{Category: "MEDICAL", Subcategory: "Ordonnances", Rationale: "Prescription."},
		},
		{
			name: "unlabeled fence",
			raw:  "```\n{\"category\": \"RH\", \"subcategory\": \"Paie\", \"reason\": \"Payslip.\"}\n```",
			want: &Proposal{Category: "RH", Subcategory: "Paie", Rationale: "Payslip."},
		},
		{
			name: "JSON embedded in prose",
			raw:  `Here is my analysis: {"category": "SCOLARITE", "subcategory": "Bulletins", "reason": "Report card."} Hope this helps!`,
			want: &Proposal{Category: "SCOLARITE", Subcategory: "Bulletins", Rationale: "Report card."},
		},
		{
			name:    "invalid JSON inside fence",
			raw:     "Sure! ```json {category: BAD}``` ",
			wantErr: true,
		},
		{
			name:    "no JSON object at all",
			raw:     "I cannot classify this document.",
			wantErr: true,
		},
		{
			name:    "missing category",
			raw:     `{"subcategory": "Divers", "reason": "No idea."}`,
			wantErr: true,
		},
		{
			name: "missing subcategory defaults to Divers",
			raw:  `{"category": "AUTRE", "reason": "Unclear."}`,
			want: &Proposal{Category: "AUTRE", Subcategory: "Divers", Rationale: "Unclear."},
		},
		{
			name: "whitespace trimmed",
			raw:  `{"category": "  FONCIER ", "subcategory": " Cadastre ", "reason": " ok "}`,
			want: &Proposal{Category: "FONCIER", Subcategory: "Cadastre", Rationale: "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProposal(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssistedClassifier_Propose(t *testing.T) {
	t.Run("successful proposal", func(t *testing.T) {
		client := &fakeAnthropicClient{reply: `{"category": "URBANISME", "subcategory": "Permis_Construire", "reason": "Permit request."}`}
		p := testAssist(client).Propose(context.Background(), "demande de permis de construire pour la parcelle", "dossier_mairie.pdf")

		require.NotNil(t, p)
		assert.Equal(t, "URBANISME", p.Category)
		assert.Equal(t, "Permis_Construire", p.Subcategory)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("prompt carries filename and bounded excerpt", func(t *testing.T) {
		client := &fakeAnthropicClient{reply: `{"category": "A", "subcategory": "B", "reason": "c"}`}
		long := strings.Repeat("x", assistExcerptChars*2)
		testAssist(client).Propose(context.Background(), long, "huge.txt")

		require.Len(t, client.req.Messages, 1)
		prompt := client.req.Messages[0].Content
		assert.Contains(t, prompt, "huge.txt")
		assert.NotContains(t, prompt, strings.Repeat("x", assistExcerptChars+1))
		assert.NotEmpty(t, client.req.System)
	})

	t.Run("accented excerpt stays valid UTF-8 when truncated", func(t *testing.T) {
		client := &fakeAnthropicClient{reply: `{"category": "A", "subcategory": "B", "reason": "c"}`}
		// The offset shift puts the excerpt limit in the middle of a
		// two-byte rune.
		accented := "a" + strings.Repeat("é", assistExcerptChars)
		testAssist(client).Propose(context.Background(), accented, "bail_loyer.txt")

		require.Len(t, client.req.Messages, 1)
		assert.True(t, utf8.ValidString(client.req.Messages[0].Content))
	})

	t.Run("transport error degrades to nil", func(t *testing.T) {
		client := &fakeAnthropicClient{err: eris.New("connection refused")}
		assert.Nil(t, testAssist(client).Propose(context.Background(), "some document text here", "doc.pdf"))
	})

	t.Run("malformed reply degrades to nil", func(t *testing.T) {
		client := &fakeAnthropicClient{reply: "Sure! ```json {category: BAD}``` "}
		assert.Nil(t, testAssist(client).Propose(context.Background(), "some document text here", "doc.pdf"))
	})

	t.Run("nil classifier degrades to nil", func(t *testing.T) {
		var a *AssistedClassifier
		assert.Nil(t, a.Propose(context.Background(), "text", "doc.pdf"))
	})
}
