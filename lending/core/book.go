package core

// Book is a catalog entry tracked at the title level by copy counts, not by
// individual copy identity.
//
// TotalCopies counts the copies in the library's possession (a reservation
// takes one out, a return or replacement puts one back). UnavailableCopies
// counts copies pulled from circulation (damaged or lost, not yet replaced).
type Book struct {
	ISBN              ISBNString
	Title             string
	TotalCopies       int
	UnavailableCopies int
	Cost              float64
}

// BuildBook creates a new Book, validating copy counts and cost.
func BuildBook(isbn ISBNString, title string, totalCopies int, unavailableCopies int, cost float64) (Book, error) {
	if totalCopies < 0 || unavailableCopies < 0 {
		return Book{}, ErrNegativeCopies
	}

	if cost < 0 {
		return Book{}, ErrNegativeCost
	}

	return Book{
		ISBN:              isbn,
		Title:             title,
		TotalCopies:       totalCopies,
		UnavailableCopies: unavailableCopies,
		Cost:              cost,
	}, nil
}

// AvailableCopies derives the number of copies that can be reserved right now.
// Copies pulled from circulation are excluded; the result never goes below zero.
func (b Book) AvailableCopies() int {
	available := b.TotalCopies - b.UnavailableCopies
	if available < 0 {
		return 0
	}

	return available
}

// IsAvailable reports whether at least one copy can be reserved.
func (b Book) IsAvailable() bool {
	return b.AvailableCopies() > 0
}

// ReserveCopy takes one copy out for an accepted request.
// Returns ErrInventoryExhausted when no copy is available; counts never go negative.
func (b Book) ReserveCopy() (Book, error) {
	if !b.IsAvailable() {
		return b, ErrInventoryExhausted
	}

	b.TotalCopies--

	return b, nil
}

// ReleaseCopy puts one physical copy back into circulation.
func (b Book) ReleaseCopy() Book {
	b.TotalCopies++

	return b
}

// MarkUnavailable pulls count copies from circulation.
// count must satisfy 1 <= count <= AvailableCopies().
func (b Book) MarkUnavailable(count int) (Book, error) {
	if count < 1 || count > b.AvailableCopies() {
		return b, ErrInvalidCount
	}

	b.UnavailableCopies += count

	return b, nil
}

// MarkAvailable returns count previously pulled copies to circulation.
// count must satisfy 1 <= count <= UnavailableCopies.
func (b Book) MarkAvailable(count int) (Book, error) {
	if count < 1 || count > b.UnavailableCopies {
		return b, ErrInvalidCount
	}

	b.UnavailableCopies -= count

	return b, nil
}

// CopyWentMissing records a copy that left circulation while on loan
// (damaged or lost): the unavailable counter grows without touching
// TotalCopies, since the reserved copy was never handed back.
func (b Book) CopyWentMissing() Book {
	b.UnavailableCopies++

	return b
}
