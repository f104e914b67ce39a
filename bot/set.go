package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/warp/birthday-engine/birthday"
)

// set registers the invoker's birthday in two confirmed steps: a date reply,
// then the echo of a random code. Nothing is written unless both arrive in
// time. A second registration is refused with the stored date.
func (h *Handlers) set(ctx context.Context, c *Context) error {
	author := c.Message.AuthorName

	rec, err := h.find(ctx, c.Message.AuthorID)
	if err != nil {
		return err
	}
	if rec != nil {
		_, err := c.Reply(ctx, fmt.Sprintf(
			"You've already set your birth date to **%s**\nTo change this, please contact the owner of the bot.",
			rec.Birthday.Format(dayMonthYearLayout)))
		return err
	}

	prompt, err := c.Reply(ctx, fmt.Sprintf("Hello there **%s**, please enter when you were born. `[ DD/MM/YYYY ]`", author))
	if err != nil {
		return err
	}
	code := strconv.Itoa(h.Code())

	reply, err := c.Platform.WaitForMessage(ctx, c.Message.ChannelID, c.Message.AuthorID,
		func(m *Message) bool { return birthday.LooksLikeBirthdate(m.Content) },
		h.ConfirmTimeout)
	if errors.Is(err, ErrWaitTimeout) {
		return strike(ctx, c, prompt, "fine then, I won't save your birthday :(")
	}
	if err != nil {
		return err
	}

	born, age, err := birthday.ParseBirthdate(reply.Content, h.Now())
	if err != nil {
		_, sendErr := c.Reply(ctx, rejection(err, author))
		return sendErr
	}
	date := born.Format(dayMonthYearLayout)

	confirm, err := c.Reply(ctx, fmt.Sprintf(
		"Alright **%s**, do you confirm that your birth date is **%s** and you're currently **%d** years old?\n"+
			"Type `%s` to confirm this choice\n"+
			"(NOTE: To change birthday later, you must send valid birthday to the owner)",
		author, date, age, code))
	if err != nil {
		return err
	}

	_, err = c.Platform.WaitForMessage(ctx, c.Message.ChannelID, c.Message.AuthorID,
		func(m *Message) bool { return strings.HasPrefix(m.Content, code) },
		h.ConfirmTimeout)
	if errors.Is(err, ErrWaitTimeout) {
		return strike(ctx, c, confirm, "Stopped process...")
	}
	if err != nil {
		return err
	}

	id, err := parseSnowflake(c.Message.AuthorID)
	if err != nil {
		return err
	}
	if err := h.Store.Insert(ctx, id, born, false); err != nil {
		if errors.Is(err, birthday.ErrAlreadyRegistered) {
			_, sendErr := c.Reply(ctx, "You've already set your birth date\nTo change this, please contact the owner of the bot.")
			return sendErr
		}
		return err
	}
	h.Logger.InfoContext(ctx, "birthday registered", "user_id", c.Message.AuthorID)

	_, err = c.Reply(ctx, fmt.Sprintf("Done, your birth date is now saved in my database at **%s** 🎂", date))
	return err
}

// strike cancels a protocol step by crossing out its prompt.
func strike(ctx context.Context, c *Context, prompt *Message, note string) error {
	_, err := c.Platform.Edit(ctx, prompt.ChannelID, prompt.ID, fmt.Sprintf("~~%s~~\n\n%s", prompt.Content, note))
	return err
}

func rejection(err error, author string) string {
	switch {
	case errors.Is(err, birthday.ErrFutureDate):
		return fmt.Sprintf("Nope.. you can't exist in the future **%s**", author)
	case errors.Is(err, birthday.ErrTooOld):
		return fmt.Sprintf("The world record for oldest human is **%d**, doubtful you're that old **%s**...", birthday.MaxAge, author)
	case errors.Is(err, birthday.ErrTooYoung):
		return fmt.Sprintf("You have to be **%d** to use Discord **%s**, are you saying you're underage? 🤔", birthday.MinAge+1, author)
	default:
		return fmt.Sprintf("That is not a real date **%s**, try again with `DD/MM/YYYY`", author)
	}
}
