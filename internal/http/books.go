package http

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/services"
)

const maxCoverUpload = 5 << 20

// CoverLocator resolves the cover file of a library directory.
type CoverLocator interface {
	CoverPath(bookPath string) (string, error)
}

type BooksController struct {
	reader services.BookReader
	writer services.BookWriter
	covers CoverLocator
}

func NewBooksController(reader services.BookReader, writer services.BookWriter, covers CoverLocator) *BooksController {
	return &BooksController{reader: reader, writer: writer, covers: covers}
}

// ListBooks handles GET /api/books
func (bc *BooksController) ListBooks(c *gin.Context) {
	var filter entities.BookFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBadRequest(c, "invalid filter: "+err.Error())
		return
	}
	books, err := bc.reader.ListBooks(c.Request.Context(), filter, readerID(c))
	if err != nil {
		respondServiceError(c, err, "book", "list books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

// GetBook handles GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.reader.GetBook(c.Request.Context(), id, readerID(c))
	if err != nil {
		respondServiceError(c, err, "book", "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// CreateBook handles POST /api/books
func (bc *BooksController) CreateBook(c *gin.Context) {
	var fields entities.BookFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	book, err := bc.writer.CreateBook(c.Request.Context(), fields)
	respondWrite(c, http.StatusCreated, bookOrNil(book), err, "create book")
}

// UpdateBook handles PUT /api/books/:id
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var fields entities.BookFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	book, err := bc.writer.UpdateBook(c.Request.Context(), id, fields)
	respondWrite(c, http.StatusOK, bookOrNil(book), err, "update book")
}

// DeleteBook handles DELETE /api/books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := bc.writer.DeleteBook(c.Request.Context(), id)
	var data any
	if res != nil {
		data = res
	}
	respondWrite(c, http.StatusOK, data, err, "delete book")
}

// GetCover handles GET /api/books/:id/cover
func (bc *BooksController) GetCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.reader.GetBook(c.Request.Context(), id, "")
	if err != nil {
		respondServiceError(c, err, "book", "get cover")
		return
	}
	if !book.CoverExists || bc.covers == nil {
		respondNotFound(c, "cover")
		return
	}
	path, err := bc.covers.CoverPath(book.Path)
	if err != nil {
		respondInternalError(c, err, "cover path")
		return
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		respondNotFound(c, "cover")
		return
	}
	c.File(path)
}

// PutCover handles PUT /api/books/:id/cover with the raw image as body.
func (bc *BooksController) PutCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCoverUpload+1))
	if err != nil {
		respondBadRequest(c, "could not read body")
		return
	}
	if len(data) == 0 {
		respondBadRequest(c, "empty cover")
		return
	}
	if len(data) > maxCoverUpload {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "cover too large"})
		return
	}
	if err := bc.writer.SetCover(c.Request.Context(), id, data); err != nil {
		respondServiceError(c, err, "book", "set cover")
		return
	}
	respondSuccess(c, "cover stored")
}

// DeleteCover handles DELETE /api/books/:id/cover
func (bc *BooksController) DeleteCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.writer.SetCover(c.Request.Context(), id, nil); err != nil {
		respondServiceError(c, err, "book", "remove cover")
		return
	}
	respondSuccess(c, "cover removed")
}

func bookOrNil(b *entities.EnrichedBook) any {
	if b == nil {
		return nil
	}
	return b
}
