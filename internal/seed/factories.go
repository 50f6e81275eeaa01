// Package seed fills a database with demo forums, users, posts and replies.
// Everything is created through the services so counters, sanitization and
// validation match real traffic.
package seed

import (
	"fmt"
	"strings"

	"agora/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultPassword is the password given to every generated user.
const DefaultPassword = "password123"

// Factory builds service inputs filled with fake data. A Factory with the
// same seed produces the same sequence of inputs.
type Factory struct {
	faker *gofakeit.Faker
	n     int
}

// NewFactory returns a Factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Intn returns a number in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// Chance reports true with probability pct/100.
func (f *Factory) Chance(pct int) bool {
	return f.faker.Number(1, 100) <= pct
}

// Register builds a sign-up payload with a unique username and email.
func (f *Factory) Register() service.RegisterInput {
	f.n++
	base := cleanUsername(f.faker.Username())
	if len(base) > 20 {
		base = base[:20]
	}
	if len(base) < 3 {
		base = "user"
	}
	username := fmt.Sprintf("%s_%d", base, f.n)
	return service.RegisterInput{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: DefaultPassword,
	}
}

// Post builds a thread for forumID. Roughly one in ten threads carries a
// poll when withPoll is set.
func (f *Factory) Post(forumID uint, withPoll bool) service.CreatePostInput {
	in := service.CreatePostInput{
		Title:   strings.TrimSuffix(f.faker.Sentence(6), "."),
		Content: f.faker.Paragraph(f.faker.Number(1, 3), f.faker.Number(2, 5), 12, "\n\n"),
		ForumID: forumID,
	}
	for i := f.faker.Number(0, 3); i > 0; i-- {
		in.Tags = append(in.Tags, strings.ToLower(f.faker.Word()))
	}
	if withPoll && f.Chance(10) {
		options := make([]string, f.faker.Number(2, 4))
		for i := range options {
			options[i] = f.faker.Word()
		}
		in.Poll = &service.PollInput{
			Question: strings.TrimSuffix(f.faker.Question(), "?") + "?",
			Options:  options,
		}
	}
	return in
}

// Reply builds a reply body.
func (f *Factory) Reply() service.ReplyInput {
	return service.ReplyInput{Content: f.faker.Sentence(f.faker.Number(4, 20))}
}

func cleanUsername(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
