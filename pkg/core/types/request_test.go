package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuestionID_AcceptsStringsAndNumbers(t *testing.T) {
	var q struct {
		A QuestionID `json:"a"`
		B QuestionID `json:"b"`
		C QuestionID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"q-7","b":42,"c":null}`), &q))
	require.Equal(t, QuestionID("q-7"), q.A)
	require.Equal(t, QuestionID("42"), q.B)
	require.Equal(t, QuestionID(""), q.C)

	require.Error(t, json.Unmarshal([]byte(`{"a":{}}`), &q))
}

func TestQuestion_Prompt(t *testing.T) {
	require.Equal(t, "Comment vous appelez-vous ?", (&Question{Question: " Comment vous appelez-vous ? ", SentenceWithBlank: "Je ___ Marie."}).Prompt())
	require.Equal(t, "Je ___ Marie.", (&Question{SentenceWithBlank: "Je ___ Marie."}).Prompt())
	var nilQ *Question
	require.Equal(t, "", nilQ.Prompt())
	require.False(t, nilQ.HasAudio())
	require.True(t, (&Question{AudioBase64: "AAAA"}).HasAudio())
}

func TestStartSessionResponse_Decode(t *testing.T) {
	var resp StartSessionResponse
	raw := `{"sessionId":"s-1","question":{"id":3,"question":"Bonjour ?","audioBase64":"UklGRg=="}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	require.Equal(t, "s-1", resp.SessionID)
	require.NotNil(t, resp.Question)
	require.Equal(t, QuestionID("3"), resp.Question.ID)
	require.True(t, resp.Question.HasAudio())
}

func TestValidate_StartSessionRequest(t *testing.T) {
	require.NoError(t, Validate(&StartSessionRequest{ThematicGroup: 1}))
	chapter := 2
	require.NoError(t, Validate(&StartSessionRequest{ThematicGroup: 6, ChapterNumber: &chapter}))

	err := Validate(&StartSessionRequest{ThematicGroup: 7})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "thematicGroup", verr.Param)
	require.Equal(t, "must be <= 6", verr.Message)

	err = Validate(&StartSessionRequest{})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "thematicGroup", verr.Param)
	require.Equal(t, "is required", verr.Message)

	zero := 0
	err = Validate(&StartSessionRequest{ThematicGroup: 1, ChapterNumber: &zero})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "chapterNumber", verr.Param)
}

func TestValidate_SubmitAnswerRequest(t *testing.T) {
	ok := &SubmitAnswerRequest{SessionID: "s", QuestionID: "q", Audio: []byte{1}, AudioFormat: AudioFormatOGG}
	require.NoError(t, Validate(ok))

	var verr *ValidationError

	noAudio := *ok
	noAudio.Audio = []byte{}
	require.ErrorAs(t, Validate(&noAudio), &verr)
	require.Equal(t, "audio", verr.Param)

	badFormat := *ok
	badFormat.AudioFormat = "mp3"
	require.ErrorAs(t, Validate(&badFormat), &verr)
	require.Equal(t, "audioFormat", verr.Param)
	require.Equal(t, "must be one of webm|m4a|ogg|wav", verr.Message)

	noSession := *ok
	noSession.SessionID = ""
	require.ErrorAs(t, Validate(&noSession), &verr)
	require.Equal(t, "sessionId", verr.Param)
}
