package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/metrics"
	"github.com/tradmak/aixos/pkg/logger"
)

type scriptedCompleter struct {
	reply      string
	err        error
	lastSystem string
	lastPrompt string
}

func (c *scriptedCompleter) Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	c.lastSystem = systemInstruction
	c.lastPrompt = userPrompt
	return c.reply, c.err
}

func newTestService(completer Completer) *Service {
	return NewService(completer, logger.New("test"))
}

func TestSupportReplyInjectsKnowledgeAndHistory(t *testing.T) {
	completer := &scriptedCompleter{reply: "Our plans start at $29/mo."}
	svc := newTestService(completer)

	out := svc.SupportReply(context.Background(), "Alice",
		[]domain.Message{
			{SenderType: domain.SenderUser, Content: "how much does it cost?"},
			{SenderType: domain.SenderAgent, Content: "let me check"},
		},
		[]domain.Resource{{Name: "Pricing FAQ", KnowledgeContent: "Plans start at $29/mo."}},
	)

	require.Equal(t, "Our plans start at $29/mo.", out)
	require.Contains(t, completer.lastSystem, "Alice")
	require.Contains(t, completer.lastSystem, "### Pricing FAQ")
	require.Contains(t, completer.lastPrompt, "Contact: how much does it cost?")
	require.Contains(t, completer.lastPrompt, "Agent: let me check")
}

func TestSupportReplyFallsBackOnError(t *testing.T) {
	svc := newTestService(&scriptedCompleter{err: errors.New("model down")})

	out := svc.SupportReply(context.Background(), "", nil, nil)

	require.Equal(t, supportFallback, out)
}

func TestSupportReplyFallsBackOnEmptyCompletion(t *testing.T) {
	svc := newTestService(&scriptedCompleter{reply: ""})

	out := svc.SupportReply(context.Background(), "", nil, nil)

	require.Equal(t, supportFallback, out)
}

func TestDashboardAnswerEmbedsReportAndStripsEmphasis(t *testing.T) {
	completer := &scriptedCompleter{reply: "**42** contacts, see #dashboard"}
	svc := newTestService(completer)

	report := metrics.Report{Counts: map[string]int64{"contacts": 42}}
	out := svc.DashboardAnswer(context.Background(), "Dana", "how many contacts?", report)

	require.Equal(t, "42 contacts, see dashboard", out)
	require.Contains(t, completer.lastSystem, `"contacts":42`)
	require.Contains(t, completer.lastSystem, "Dana")
}

func TestDashboardAnswerFallsBackOnError(t *testing.T) {
	svc := newTestService(&scriptedCompleter{err: errors.New("down")})

	out := svc.DashboardAnswer(context.Background(), "", "q", metrics.Report{})

	require.Equal(t, dashboardFallback, out)
}

func TestSentimentUsesContactMessagesOnly(t *testing.T) {
	completer := &scriptedCompleter{reply: "NEGATIVE"}
	svc := newTestService(completer)

	out := svc.Sentiment(context.Background(), []domain.Message{
		{SenderType: domain.SenderUser, Content: "this is broken and I want a refund"},
		{SenderType: domain.SenderAgent, Content: "so sorry, fixing now"},
	})

	require.Equal(t, SentimentNegative, out)
	require.Contains(t, completer.lastPrompt, "this is broken")
	require.NotContains(t, completer.lastPrompt, "so sorry")
}

func TestSentimentCollapsesUnknownLabels(t *testing.T) {
	for _, reply := range []string{"mostly positive, I think", "angry", "", "Positive sentiment detected"} {
		svc := newTestService(&scriptedCompleter{reply: reply})
		require.Equal(t, SentimentNeutral, svc.Sentiment(context.Background(),
			[]domain.Message{{SenderType: domain.SenderUser, Content: "hello"}}), reply)
	}
}

func TestSentimentNormalizesCaseAndWhitespace(t *testing.T) {
	svc := newTestService(&scriptedCompleter{reply: "  positive \n"})

	out := svc.Sentiment(context.Background(),
		[]domain.Message{{SenderType: domain.SenderUser, Content: "love it"}})

	require.Equal(t, SentimentPositive, out)
}

func TestSentimentEmptyHistoryIsNeutral(t *testing.T) {
	svc := newTestService(&scriptedCompleter{reply: "POSITIVE"})

	require.Equal(t, SentimentNeutral, svc.Sentiment(context.Background(), nil))
}
