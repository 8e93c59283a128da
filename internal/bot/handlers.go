package bot

import (
	"context"
	"errors"
	"fmt"

	"propfeed/internal/bids"
	"propfeed/internal/catalog"
	"propfeed/internal/feed"
	"propfeed/internal/model"
	"propfeed/internal/partition"
	"propfeed/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to PropFeed!

Browse property listings and follow your bids.

Quick start:
1. /sale, /rent or /featured to browse listings
2. /login <user> <token> to connect your account
3. /bids to see your bids, /bid <lead> <amount> to place one

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Listings:
/sale [search] — listings for sale
/rent [search] — listings for rent
/featured [search] — featured listings
/more [bucket] — load the next page (default: sale)
/refresh [bucket] — reload from the first page

Search: words match anywhere, -word excludes,
name:, city: and category: narrow the field, ~ marks a regex.

Account:
/login <user> <token> — connect your account
/logout — forget your session

Bids:
/bids — your bids per enquiry
/enquiries — your plain enquiries
/bid <lead> <amount> — place a bid (250000, 2.5L, 1.2 Cr)
/history <lead> — bid history and your submissions`)
}

func (b *Bot) handleLogin(ctx context.Context, chatID int64, args string) {
	user, token, err := ParseLoginArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /login <user> <token>")
		return
	}

	sess := &model.Session{ChatID: chatID, UserID: user, Token: token}
	if err := b.store.SaveSession(ctx, sess); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save session: %v", err))
		return
	}
	b.dropScreen(chatID)

	b.log.Info("login", "chat_id", chatID, "user_id", user)
	b.reply(chatID, fmt.Sprintf("Logged in as %s.", user))
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64) {
	if err := b.store.DeleteSession(ctx, chatID); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to log out: %v", err))
		return
	}
	b.dropScreen(chatID)
	b.reply(chatID, "Logged out.")
}

func (b *Bot) handleBucket(ctx context.Context, chatID int64, name partition.Name, args string) {
	q, err := ParseSearchArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	sc := b.screenFor(ctx, chatID)
	sc.queries[name] = q
	if !sc.loaded {
		if !b.refreshScreen(ctx, chatID, sc) {
			return
		}
	}
	b.renderBucket(chatID, sc, name, 0)
}

func (b *Bot) handleMore(ctx context.Context, chatID int64, args string) {
	name, err := ParseBucketArg(args, partition.Sale)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	sc := b.screenFor(ctx, chatID)
	if !sc.loaded {
		b.reply(chatID, fmt.Sprintf("Nothing loaded yet. Use /%s first.", name))
		return
	}

	if !sc.feed.LoadMore() {
		bk := sc.feed.Bucket(name)
		switch {
		case bk.InFlight:
			b.reply(chatID, "Still loading, try again in a moment.")
		case bk.LastError != nil:
			b.reply(chatID, fmt.Sprintf("Could not load listings (%s). Use /refresh to try again.", errorLabel(bk.LastError)))
		default:
			b.reply(chatID, "End of listings.")
		}
		return
	}
	sc.feed.Wait()

	if bk := sc.feed.Bucket(name); bk.LastError != nil && model.KindOf(bk.LastError) == model.KindAuthExpired {
		b.expireSession(ctx, chatID)
		return
	}
	b.renderBucket(chatID, sc, name, sc.shown[name])
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64, args string) {
	name, err := ParseBucketArg(args, partition.Sale)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	sc := b.screenFor(ctx, chatID)
	if !b.refreshScreen(ctx, chatID, sc) {
		return
	}
	b.renderBucket(chatID, sc, name, 0)
}

// refreshScreen reloads page 1 and reports whether the screen can be
// rendered. Fetch failures other than an expired session are shown in the
// bucket itself.
func (b *Bot) refreshScreen(ctx context.Context, chatID int64, sc *screen) bool {
	err := sc.feed.Refresh(ctx)
	switch {
	case errors.Is(err, model.ErrAuthExpired):
		b.expireSession(ctx, chatID)
		return false
	case errors.Is(err, feed.ErrClosed):
		b.reply(chatID, "This screen was closed, try again.")
		return false
	}
	sc.loaded = true
	clear(sc.shown)
	return true
}

func (b *Bot) renderBucket(chatID int64, sc *screen, name partition.Name, from int) {
	bk := sc.feed.Bucket(name)
	text := FormatBucket(name, bk, from, sc.queries[name], b.money)
	sc.shown[name] = len(bk.Items)
	b.replyWithKeyboard(chatID, text, bucketKeyboard(name, bk))
}

func (b *Bot) handleBook(ctx context.Context, chatID int64, view bids.View) {
	sess, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}
	book, ok := b.loadBook(ctx, chatID, sess, view)
	if !ok {
		return
	}
	b.reply(chatID, FormatBook(*book, view, b.money))
}

func (b *Bot) handleBid(ctx context.Context, chatID int64, args string) {
	lead, amount, err := ParseBidArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	sess, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}

	sc := b.screenFor(ctx, chatID)
	book := sc.book
	if book == nil || sc.view != bids.ViewBids || book.Find(lead) == nil || book.Find(lead).Stale() {
		if book, ok = b.loadBook(ctx, chatID, sess, bids.ViewBids); !ok {
			return
		}
	}
	l := book.Find(lead)
	if l == nil {
		b.reply(chatID, fmt.Sprintf("Lead %s not found. Use /bids to list your enquiries.", lead))
		return
	}

	sub := &model.BidSubmission{ChatID: chatID, LeadID: lead, Amount: amount}
	if latest, ok := l.Latest(); ok {
		anchor := latest.Timestamp
		sub.AnchorAt = &anchor
	}

	err = l.Submit(ctx, b.enquiryAPI(sess), amount)
	switch {
	case errors.Is(err, model.ErrInvalidAmount):
		b.reply(chatID, fmt.Sprintf("Invalid amount %s. Bids must be a positive number.", b.money.FormatFloat(amount)))
		return
	case errors.Is(err, bids.ErrStaleLedger):
		b.reply(chatID, "Bids changed since they were loaded. Use /bids and try again.")
		return
	case err == nil:
		sub.Status = model.SubmissionAccepted
	case errors.Is(err, catalog.ErrBidRejected):
		sub.Status = model.SubmissionRejected
		sub.Error = err.Error()
	default:
		sub.Status = model.SubmissionFailed
		sub.Error = err.Error()
	}

	if rerr := b.store.RecordSubmission(ctx, sub); rerr != nil {
		b.log.Error("record submission", "chat_id", chatID, "lead_id", lead, "error", rerr)
	}
	b.log.Info("bid submitted", "chat_id", chatID, "lead_id", lead, "amount", amount, "status", sub.Status)

	switch sub.Status {
	case model.SubmissionRejected:
		b.reply(chatID, fmt.Sprintf("Bid of %s on lead %s was rejected.", b.money.FormatFloat(amount), lead))
		return
	case model.SubmissionFailed:
		if errors.Is(err, model.ErrAuthExpired) {
			b.expireSession(ctx, chatID)
			return
		}
		b.reply(chatID, fmt.Sprintf("Failed to place bid: %s. Try again later.", errorLabel(err)))
		return
	}

	text := fmt.Sprintf("Bid of %s placed on lead %s.", b.money.FormatFloat(amount), lead)
	if fresh, ok := b.loadBook(ctx, chatID, sess, bids.ViewBids); ok {
		if fl := fresh.Find(lead); fl != nil {
			if latest, ok := fl.Latest(); ok {
				text += fmt.Sprintf("\nLatest bid: %s", b.money.Format(latest.Amount))
			}
		}
	}
	b.reply(chatID, text)
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, args string) {
	lead, err := ParseLeadArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /history <lead>")
		return
	}
	sess, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}

	book, ok := b.loadBook(ctx, chatID, sess, bids.ViewBids)
	if !ok {
		return
	}
	l := book.Find(lead)
	if l == nil {
		b.reply(chatID, fmt.Sprintf("Lead %s not found. Use /bids to list your enquiries.", lead))
		return
	}

	subs, err := b.store.ListSubmissions(ctx, chatID, lead)
	if err != nil {
		b.log.Error("list submissions", "chat_id", chatID, "lead_id", lead, "error", err)
	}
	b.reply(chatID, FormatLedger(l, subs, b.money))
}

func (b *Bot) requireSession(ctx context.Context, chatID int64) (*model.Session, bool) {
	sess, err := b.store.GetSession(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, "You are not logged in. Use /login <user> <token>.")
		return nil, false
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to load session: %v", err))
		return nil, false
	}
	return sess, true
}

// loadBook fetches the session's book and keeps it on the chat's screen.
func (b *Bot) loadBook(ctx context.Context, chatID int64, sess *model.Session, view bids.View) (*bids.Book, bool) {
	book, err := bids.LoadBook(ctx, b.enquiryAPI(sess), sess.UserID, view, b.log)
	if err != nil {
		if errors.Is(err, model.ErrAuthExpired) {
			b.expireSession(ctx, chatID)
			return nil, false
		}
		b.reply(chatID, fmt.Sprintf("Failed to load %s: %s. Try again later.", view, errorLabel(err)))
		return nil, false
	}

	sc := b.screenFor(ctx, chatID)
	sc.book = &book
	sc.view = view
	return &book, true
}

func (b *Bot) enquiryAPI(sess *model.Session) *catalog.Client {
	return b.client.WithToken(sess.Token)
}

// expireSession forgets a session the catalog no longer accepts.
func (b *Bot) expireSession(ctx context.Context, chatID int64) {
	if err := b.store.DeleteSession(ctx, chatID); err != nil {
		b.log.Error("delete expired session", "chat_id", chatID, "error", err)
	}
	b.dropScreen(chatID)
	b.log.Info("session expired", "chat_id", chatID)
	b.reply(chatID, "Your session has expired. Use /login <user> <token> again.")
}
