// Package submission implements the submission packager and delivery router.
// A submission package is ephemeral: it is validated, serialized to a zip
// archive, handed to exactly one delivery backend and then discarded.
package submission

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ubuntu/decorate"
)

// ErrInvalidSubmission is returned when a submission payload fails validation.
var ErrInvalidSubmission = errors.New("invalid submission")

const (
	answersEntry     = "answers.json"
	attachmentsDir   = "attachments"
	referencesEntry  = attachmentsDir + "/references.json"
	maxAttachments   = 20
	maxProposalTitle = 120
)

// Attachment describes one file carried in a submission package.
// Content is supplied inline as raw bytes, as a base64 payload, or as an
// external reference; referenced bytes are not fetched by the packager.
type Attachment struct {
	Name          string `json:"name"`
	Bytes         []byte `json:"-"`
	ContentBase64 string `json:"content_base64,omitempty"`
	ExternalURL   string `json:"url,omitempty"`
	ByteSize      int64  `json:"byte_size,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
}

// Validate checks the structured answers and attachment list of a submission.
// All problems are reported at once, joined under ErrInvalidSubmission.
func Validate(answers map[string]any, attachments []Attachment) error {
	var problems []string

	for _, field := range []string{"event_id", "supplier_name", "contact_email"} {
		if v, _ := answers[field].(string); v == "" {
			problems = append(problems, fmt.Sprintf("missing required field: %s", field))
		}
	}
	if email, _ := answers["contact_email"].(string); email != "" && !strings.Contains(email, "@") {
		problems = append(problems, "contact_email is invalid")
	}
	if title, _ := answers["proposal_title"].(string); len(title) > maxProposalTitle {
		problems = append(problems, fmt.Sprintf("proposal_title exceeds %d chars", maxProposalTitle))
	}
	if len(attachments) > maxAttachments {
		problems = append(problems, fmt.Sprintf("too many attachments (> %d)", maxAttachments))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSubmission, strings.Join(problems, "; "))
	}
	return nil
}

// Package serializes the structured answers and attachments into a zip
// archive. Inline and base64 payloads become entries under attachments/;
// external references are recorded as metadata only.
func Package(answers map[string]any, attachments []Attachment) (archive []byte, err error) {
	defer decorate.OnError(&err, "could not build submission package")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create(answersEntry)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not encode answers: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	var references []Attachment
	for _, att := range attachments {
		name := att.Name
		if name == "" {
			name = "file.bin"
		}

		content := att.Bytes
		if content == nil && att.ContentBase64 != "" {
			if content, err = base64.StdEncoding.DecodeString(att.ContentBase64); err != nil {
				return nil, fmt.Errorf("%w: attachment %s has undecodable base64 content", ErrInvalidSubmission, name)
			}
		}
		if content == nil {
			if att.ExternalURL != "" {
				references = append(references, att)
			}
			continue
		}

		w, err := zw.Create(attachmentsDir + "/" + name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
	}

	if len(references) > 0 {
		w, err := zw.Create(referencesEntry)
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(references, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("could not encode attachment references: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
