package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/docstore/memoryengine"
	"github.com/openshelf/lending-engine-go/lending/core"
	"github.com/openshelf/lending-engine-go/lending/inventory"
	"github.com/openshelf/lending-engine-go/lending/ledger"
	"github.com/openshelf/lending-engine-go/lending/requests"
	"github.com/openshelf/lending-engine-go/lending/settings"
	"github.com/openshelf/lending-engine-go/lending/shell"
)

var start = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	events []core.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, event core.DomainEvent) error {
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	docs      *memoryengine.DocumentStore
	inventory *inventory.Store
	processor *requests.Processor
	ledger    *ledger.Ledger
	published *capturingPublisher
	now       *time.Time
}

func (f fixture) advanceTo(t time.Time) {
	*f.now = t
}

func givenFixture(t *testing.T) fixture {
	t.Helper()

	docs := memoryengine.NewDocumentStore()
	now := start
	clock := func() time.Time { return now }
	published := &capturingPublisher{}

	provider, err := settings.BuildProvider(docs)
	require.NoError(t, err)

	inv, err := inventory.BuildStore(docs, inventory.WithClock(clock))
	require.NoError(t, err)

	processor, err := requests.BuildProcessor(docs, provider, requests.WithClock(clock))
	require.NoError(t, err)

	lgr, err := ledger.BuildLedger(docs, provider,
		ledger.WithClock(clock),
		ledger.WithPublisher(published),
		ledger.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
	)
	require.NoError(t, err)

	return fixture{docs: docs, inventory: inv, processor: processor, ledger: lgr, published: published, now: &now}
}

func (f fixture) givenAcceptedRequest(t *testing.T, totalCopies int) core.BookRequest {
	t.Helper()

	book, err := core.BuildBook("978-0134190440", "The Go Programming Language", totalCopies, 0, 20.0)
	require.NoError(t, err)
	require.NoError(t, f.inventory.AddBook(context.Background(), book))

	request, err := f.processor.Submit(context.Background(), "member-1", book.ISBN, 0)
	require.NoError(t, err)

	accepted, err := f.processor.Accept(context.Background(), request.ID)
	require.NoError(t, err)

	return accepted
}

func (f fixture) givenIssuedLoan(t *testing.T, totalCopies int) core.Transaction {
	t.Helper()

	request := f.givenAcceptedRequest(t, totalCopies)

	transaction, err := f.ledger.Issue(context.Background(), request.ID)
	require.NoError(t, err)

	return transaction
}

func (f fixture) availableCopies(t *testing.T, isbn core.ISBNString) int {
	t.Helper()

	book, err := f.inventory.BookByISBN(context.Background(), isbn)
	require.NoError(t, err)

	return book.AvailableCopies()
}

func (f fixture) fineFor(t *testing.T, transaction core.Transaction) core.Fine {
	t.Helper()

	require.NotNil(t, transaction.FineID)
	doc, err := f.docs.Load(context.Background(), shell.FinesCollection, *transaction.FineID)
	require.NoError(t, err)

	fine, err := shell.EntityFrom[core.Fine](doc)
	require.NoError(t, err)

	return fine
}

func Test_Ledger_Issue_HandsOverReservedCopy_WithoutSecondDecrement(t *testing.T) {
	// arrange
	f := givenFixture(t)
	request := f.givenAcceptedRequest(t, 2)

	// act
	transaction, err := f.ledger.Issue(context.Background(), request.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, core.TransactionIssued, transaction.Status)
	assert.Equal(t, core.ToTimestamp(start).AddDate(0, 0, 7), transaction.DueDate)
	assert.Equal(t, 1, f.availableCopies(t, request.BookID))
}

func Test_Ledger_Issue_PublishesLoanIssued(t *testing.T) {
	// arrange
	f := givenFixture(t)
	request := f.givenAcceptedRequest(t, 2)

	// act
	transaction, err := f.ledger.Issue(context.Background(), request.ID)

	// assert
	require.NoError(t, err)
	require.Len(t, f.published.events, 1)
	issued, ok := f.published.events[0].(core.LoanIssued)
	require.True(t, ok)
	assert.Equal(t, transaction.ID, issued.TransactionID)
}

func Test_Ledger_Issue_Fails_WhenRequestIsStillPending(t *testing.T) {
	// arrange
	f := givenFixture(t)
	book, err := core.BuildBook("978-0134190440", "The Go Programming Language", 2, 0, 20.0)
	require.NoError(t, err)
	require.NoError(t, f.inventory.AddBook(context.Background(), book))
	request, err := f.processor.Submit(context.Background(), "member-1", book.ISBN, 0)
	require.NoError(t, err)

	// act
	_, err = f.ledger.Issue(context.Background(), request.ID)

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func Test_Ledger_Issue_Fails_AndReleasesCopy_WhenReservationExpired(t *testing.T) {
	// arrange
	f := givenFixture(t)
	request := f.givenAcceptedRequest(t, 2)
	f.advanceTo(start.Add(core.DefaultReservationDuration + time.Hour))

	// act
	_, err := f.ledger.Issue(context.Background(), request.ID)

	// assert
	assert.ErrorIs(t, err, core.ErrReservationExpired)
	assert.Equal(t, 2, f.availableCopies(t, request.BookID))

	reloaded, err := f.processor.RequestByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RequestRejected, reloaded.Status)
}

func Test_Ledger_Return_OnTime_ReleasesCopyWithoutFine(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)
	f.advanceTo(start.AddDate(0, 0, 3))

	// act
	closed, err := f.ledger.Return(context.Background(), transaction.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, core.TransactionReturned, closed.Status)
	assert.Nil(t, closed.FineID)
	assert.Equal(t, 2, f.availableCopies(t, transaction.BookID))
}

func Test_Ledger_Return_ThreeDaysLate_RecordsLateFine(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)
	f.advanceTo(transaction.DueDate.AddDate(0, 0, 3))

	// act
	closed, err := f.ledger.Return(context.Background(), transaction.ID)

	// assert
	require.NoError(t, err)
	fine := f.fineFor(t, closed)
	assert.Equal(t, core.FineReasonLate, fine.Reason)
	assert.InDelta(t, 15.0, fine.Amount, 0.001)
	assert.Equal(t, core.FinePending, fine.Status)
}

func Test_Ledger_Return_Fails_WhenLoanIsAlreadyClosed(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)
	_, err := f.ledger.Return(context.Background(), transaction.ID)
	require.NoError(t, err)

	// act
	_, err = f.ledger.Return(context.Background(), transaction.ID)

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func Test_Ledger_MarkDamaged_WithoutReplacement_RemovesCopyAndRecordsFine(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)

	// act
	closed, err := f.ledger.MarkDamaged(context.Background(), transaction.ID, false)

	// assert
	require.NoError(t, err)
	assert.Equal(t, core.TransactionDamaged, closed.Status)
	assert.Equal(t, 0, f.availableCopies(t, transaction.BookID))

	fine := f.fineFor(t, closed)
	assert.Equal(t, core.FineReasonDamaged, fine.Reason)
	assert.InDelta(t, 12.0, fine.Amount, 0.001)
}

func Test_Ledger_MarkDamaged_WithReplacement_KeepsCirculationSize(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)

	// act
	_, err := f.ledger.MarkDamaged(context.Background(), transaction.ID, true)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, f.availableCopies(t, transaction.BookID))
}

func Test_Ledger_MarkLost_RemovesCopyAndRecordsLostFine(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)

	// act
	closed, err := f.ledger.MarkLost(context.Background(), transaction.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, core.TransactionLost, closed.Status)
	assert.Equal(t, 0, f.availableCopies(t, transaction.BookID))

	fine := f.fineFor(t, closed)
	assert.Equal(t, core.FineReasonLost, fine.Reason)
	assert.InDelta(t, 17.0, fine.Amount, 0.001)
}

func Test_Ledger_ClosingLoan_PublishesLoanClosedAndFineRecorded(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)
	f.advanceTo(transaction.DueDate.AddDate(0, 0, 1))

	// act
	_, err := f.ledger.Return(context.Background(), transaction.ID)

	// assert
	require.NoError(t, err)
	require.Len(t, f.published.events, 3) // LoanIssued, LoanClosed, FineRecorded
	assert.Equal(t, core.LoanClosedEventType, f.published.events[1].EventType())
	assert.Equal(t, core.FineRecordedEventType, f.published.events[2].EventType())
}

func Test_Ledger_Issue_Fails_WhenLoanWasAlreadyIssued(t *testing.T) {
	// arrange
	f := givenFixture(t)
	request := f.givenAcceptedRequest(t, 2)
	_, err := f.ledger.Issue(context.Background(), request.ID)
	require.NoError(t, err)

	// act
	_, err = f.ledger.Issue(context.Background(), request.ID)

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func Test_Ledger_IssuedCount_CountsOnlyOpenLoans(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)

	// act + assert
	count, err := f.ledger.IssuedCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = f.ledger.Return(context.Background(), transaction.ID)
	require.NoError(t, err)

	count, err = f.ledger.IssuedCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func Test_Ledger_OverdueCount_CountsOpenLoansPastDueDate(t *testing.T) {
	// arrange
	f := givenFixture(t)
	transaction := f.givenIssuedLoan(t, 2)

	// act + assert
	count, err := f.ledger.OverdueCount(context.Background(), transaction.DueDate)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = f.ledger.OverdueCount(context.Background(), transaction.DueDate.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func Test_Ledger_TransactionByID_Fails_ForUnknownLoan(t *testing.T) {
	// arrange
	f := givenFixture(t)

	// act
	_, err := f.ledger.TransactionByID(context.Background(), "txn-unknown")

	// assert
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
