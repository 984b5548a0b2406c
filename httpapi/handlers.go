package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openshelf/lending-engine-go/lending/core"
)

type addBookBody struct {
	ISBN              string  `json:"isbn"`
	Title             string  `json:"title"`
	TotalCopies       int     `json:"total_copies"`
	UnavailableCopies int     `json:"unavailable_copies"`
	Cost              float64 `json:"cost"`
}

func (s *Server) addBook(c *fiber.Ctx) error {
	var body addBookBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "malformed body")
	}

	if body.ISBN == "" {
		return badRequest(c, "isbn must not be empty")
	}

	book, err := core.BuildBook(body.ISBN, body.Title, body.TotalCopies, body.UnavailableCopies, body.Cost)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := s.inventory.AddBook(c.Context(), book); err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(book)
}

func (s *Server) listCatalog(c *fiber.Ctx) error {
	catalog, err := s.inventory.Catalog(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(catalog)
}

func (s *Server) bookByISBN(c *fiber.Ctx) error {
	book, err := s.inventory.BookByISBN(c.Context(), c.Params("isbn"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(book)
}

type countBody struct {
	Count int `json:"count"`
}

func (s *Server) markUnavailable(c *fiber.Ctx) error {
	var body countBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "malformed body")
	}

	if err := s.inventory.MarkUnavailable(c.Context(), c.Params("isbn"), body.Count); err != nil {
		return s.respondError(c, err)
	}

	return s.bookByISBN(c)
}

func (s *Server) markAvailable(c *fiber.Ctx) error {
	var body countBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "malformed body")
	}

	if err := s.inventory.MarkAvailable(c.Context(), c.Params("isbn"), body.Count); err != nil {
		return s.respondError(c, err)
	}

	return s.bookByISBN(c)
}

type submitRequestBody struct {
	MemberID    string `json:"member_id"`
	BookID      string `json:"book_id"`
	WindowHours int    `json:"window_hours"`
}

func (s *Server) submitRequest(c *fiber.Ctx) error {
	var body submitRequestBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "malformed body")
	}

	if body.MemberID == "" || body.BookID == "" {
		return badRequest(c, "member_id and book_id must not be empty")
	}

	request, err := s.requests.Submit(c.Context(), body.MemberID, body.BookID, time.Duration(body.WindowHours)*time.Hour)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

func (s *Server) pendingRequests(c *fiber.Ctx) error {
	pending, err := s.requests.PendingRequests(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(pending)
}

func (s *Server) requestByID(c *fiber.Ctx) error {
	request, err := s.requests.RequestByID(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(request)
}

func (s *Server) acceptRequest(c *fiber.Ctx) error {
	accepted, err := s.requests.Accept(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(accepted)
}

func (s *Server) rejectRequest(c *fiber.Ctx) error {
	rejected, err := s.requests.Reject(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(rejected)
}

func (s *Server) issueLoan(c *fiber.Ctx) error {
	transaction, err := s.ledger.Issue(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transaction)
}

func (s *Server) transactionByID(c *fiber.Ctx) error {
	transaction, err := s.ledger.TransactionByID(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(transaction)
}

func (s *Server) returnLoan(c *fiber.Ctx) error {
	closed, err := s.ledger.Return(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(closed)
}

type markDamagedBody struct {
	ReplaceCopy bool `json:"replace_copy"`
}

func (s *Server) markDamaged(c *fiber.Ctx) error {
	var body markDamagedBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "malformed body")
		}
	}

	closed, err := s.ledger.MarkDamaged(c.Context(), c.Params("id"), body.ReplaceCopy)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(closed)
}

func (s *Server) markLost(c *fiber.Ctx) error {
	closed, err := s.ledger.MarkLost(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(closed)
}

type loanCountsBody struct {
	Issued  int `json:"issued"`
	Overdue int `json:"overdue"`
}

func (s *Server) loanCounts(c *fiber.Ctx) error {
	issued, err := s.ledger.IssuedCount(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}

	overdue, err := s.ledger.OverdueCount(c.Context(), time.Now())
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(loanCountsBody{Issued: issued, Overdue: overdue})
}

type recordFineBody struct {
	MemberID      string  `json:"member_id"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}

func (s *Server) recordFine(c *fiber.Ctx) error {
	var body recordFineBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "malformed body")
	}

	if body.MemberID == "" || body.TransactionID == "" {
		return badRequest(c, "member_id and transaction_id must not be empty")
	}

	fine, err := s.fines.Record(c.Context(), body.MemberID, body.TransactionID, body.Amount, core.FineReason(body.Reason))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fine)
}

func (s *Server) fineByID(c *fiber.Ctx) error {
	fine, err := s.fines.FineByID(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fine)
}

func (s *Server) toggleFineStatus(c *fiber.Ctx) error {
	fine, err := s.fines.ToggleStatus(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fine)
}

func (s *Server) finesForMember(c *fiber.Ctx) error {
	memberFines, err := s.fines.FinesForMember(c.Context(), c.Params("memberID"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(memberFines)
}

type pendingFinesBody struct {
	Pending int `json:"pending"`
}

func (s *Server) pendingFinesCount(c *fiber.Ctx) error {
	count, err := s.fines.PendingFinesCount(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(pendingFinesBody{Pending: count})
}

type settingsBody struct {
	MaxBorrowingDays         int     `json:"max_borrowing_days"`
	LateReturnFine           float64 `json:"late_return_fine"`
	DamagedBookPercentage    int     `json:"damaged_book_percentage"`
	LostBookPercentage       int     `json:"lost_book_percentage"`
	ReservationDurationHours int     `json:"reservation_duration_hours"`
}

func settingsBodyFrom(snapshot core.LibrarySettings) settingsBody {
	return settingsBody{
		MaxBorrowingDays:         snapshot.MaxBorrowingDays,
		LateReturnFine:           snapshot.LateReturnFine,
		DamagedBookPercentage:    snapshot.DamagedBookPercentage,
		LostBookPercentage:       snapshot.LostBookPercentage,
		ReservationDurationHours: int(snapshot.ReservationDuration / time.Hour),
	}
}

func (s *Server) currentSettings(c *fiber.Ctx) error {
	snapshot, err := s.settings.Current(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(settingsBodyFrom(snapshot))
}

func (s *Server) updateSettings(c *fiber.Ctx) error {
	var body settingsBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "malformed body")
	}

	if body.MaxBorrowingDays <= 0 || body.LateReturnFine < 0 ||
		body.DamagedBookPercentage < 0 || body.LostBookPercentage < 0 || body.ReservationDurationHours <= 0 {
		return badRequest(c, "settings values out of range")
	}

	snapshot := core.LibrarySettings{
		MaxBorrowingDays:      body.MaxBorrowingDays,
		LateReturnFine:        body.LateReturnFine,
		DamagedBookPercentage: body.DamagedBookPercentage,
		LostBookPercentage:    body.LostBookPercentage,
		ReservationDuration:   time.Duration(body.ReservationDurationHours) * time.Hour,
	}

	if err := s.settings.Update(c.Context(), snapshot); err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(settingsBodyFrom(snapshot))
}
