package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/services"
)

// ReadingController serves the reader-scoped extension data. The reader comes
// from the X-Reader-ID header.
type ReadingController struct {
	reading *services.ReadingService
}

func NewReadingController(reading *services.ReadingService) *ReadingController {
	return &ReadingController{reading: reading}
}

// GetState handles GET /api/books/:id/state
func (rc *ReadingController) GetState(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	st, err := rc.reading.GetReadingState(c.Request.Context(), id, readerID(c))
	if err != nil {
		respondServiceError(c, err, "reading state", "get reading state")
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateState handles PUT /api/books/:id/state
func (rc *ReadingController) UpdateState(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var update services.StateUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	st, err := rc.reading.UpdateReadingState(c.Request.Context(), id, update, readerID(c))
	if err != nil {
		respondServiceError(c, err, "book", "update reading state")
		return
	}
	c.JSON(http.StatusOK, st)
}

// ListSessions handles GET /api/books/:id/sessions
func (rc *ReadingController) ListSessions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := rc.reading.ListSessions(c.Request.Context(), id, readerID(c))
	if err != nil {
		respondServiceError(c, err, "book", "list sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list, "count": len(list)})
}

// RecordSession handles POST /api/books/:id/sessions
func (rc *ReadingController) RecordSession(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var session entities.ReadingSession
	if err := c.ShouldBindJSON(&session); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	session.ID = 0
	session.BookID = id
	session.ReaderID = readerID(c)
	if err := rc.reading.RecordSession(c.Request.Context(), &session); err != nil {
		respondServiceError(c, err, "book", "record session")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Heatmap handles GET /api/heatmap?year=
func (rc *ReadingController) Heatmap(c *gin.Context) {
	year, ok := parseQueryInt(c, "year", time.Now().Year())
	if !ok {
		return
	}
	cells, err := rc.reading.Heatmap(c.Request.Context(), readerID(c), year)
	if err != nil {
		respondServiceError(c, err, "heatmap", "heatmap")
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "cells": cells})
}

type bookmarkRequest struct {
	Page int      `json:"page"`
	Note string   `json:"note"`
	Tags []string `json:"tags"`
}

// ListBookmarks handles GET /api/books/:id/bookmarks
func (rc *ReadingController) ListBookmarks(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := rc.reading.ListBookmarks(c.Request.Context(), id, readerID(c))
	if err != nil {
		respondServiceError(c, err, "book", "list bookmarks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": list, "count": len(list)})
}

// AddBookmark handles POST /api/books/:id/bookmarks
func (rc *ReadingController) AddBookmark(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req bookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	bm := &entities.Bookmark{BookID: id, ReaderID: readerID(c), Page: req.Page, Note: req.Note, Tags: req.Tags}
	if err := rc.reading.AddBookmark(c.Request.Context(), bm); err != nil {
		respondServiceError(c, err, "book", "add bookmark")
		return
	}
	c.JSON(http.StatusCreated, bm)
}

// BookmarksByTag handles GET /api/bookmarks?tag=
func (rc *ReadingController) BookmarksByTag(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		respondBadRequest(c, "tag is required")
		return
	}
	list, err := rc.reading.BookmarksByTag(c.Request.Context(), readerID(c), tag)
	if err != nil {
		respondServiceError(c, err, "bookmark", "bookmarks by tag")
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": list, "count": len(list)})
}

// DeleteBookmark handles DELETE /api/bookmarks/:id
func (rc *ReadingController) DeleteBookmark(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := rc.reading.DeleteBookmark(c.Request.Context(), id, readerID(c)); err != nil {
		respondServiceError(c, err, "bookmark", "delete bookmark")
		return
	}
	respondSuccess(c, "bookmark deleted")
}

type groupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// ListGroups handles GET /api/groups
func (rc *ReadingController) ListGroups(c *gin.Context) {
	list, err := rc.reading.ListGroups(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "group", "list groups")
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": list, "count": len(list)})
}

// CreateGroup handles POST /api/groups
func (rc *ReadingController) CreateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}
	g, err := rc.reading.CreateGroup(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondServiceError(c, err, "group", "create group")
		return
	}
	c.JSON(http.StatusCreated, g)
}

// DeleteGroup handles DELETE /api/groups/:id
func (rc *ReadingController) DeleteGroup(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := rc.reading.DeleteGroup(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "group", "delete group")
		return
	}
	respondSuccess(c, "group deleted")
}

// AddToGroup handles PUT /api/groups/:id/books/:bookId
func (rc *ReadingController) AddToGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}
	if err := rc.reading.AddToGroup(c.Request.Context(), bookID, groupID); err != nil {
		respondServiceError(c, err, "book or group", "add to group")
		return
	}
	respondSuccess(c, "book added to group")
}

// RemoveFromGroup handles DELETE /api/groups/:id/books/:bookId
func (rc *ReadingController) RemoveFromGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}
	if err := rc.reading.RemoveFromGroup(c.Request.Context(), bookID, groupID); err != nil {
		respondServiceError(c, err, "group membership", "remove from group")
		return
	}
	respondSuccess(c, "book removed from group")
}

// GetGoal handles GET /api/goals/:year
func (rc *ReadingController) GetGoal(c *gin.Context) {
	year, ok := parseIDParam(c, "year")
	if !ok {
		return
	}
	g, err := rc.reading.GetGoal(c.Request.Context(), readerID(c), int(year))
	if err != nil {
		respondServiceError(c, err, "goal", "get goal")
		return
	}
	c.JSON(http.StatusOK, g)
}

// SetGoal handles PUT /api/goals/:year
func (rc *ReadingController) SetGoal(c *gin.Context) {
	year, ok := parseIDParam(c, "year")
	if !ok {
		return
	}
	var goal entities.ReadingGoal
	if err := c.ShouldBindJSON(&goal); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	goal.ID = 0
	goal.Year = int(year)
	goal.ReaderID = readerID(c)
	if err := rc.reading.SetGoal(c.Request.Context(), &goal); err != nil {
		respondServiceError(c, err, "goal", "set goal")
		return
	}
	c.JSON(http.StatusOK, goal)
}

// ListWishlist handles GET /api/wishlist
func (rc *ReadingController) ListWishlist(c *gin.Context) {
	list, err := rc.reading.ListWishlist(c.Request.Context(), readerID(c))
	if err != nil {
		respondServiceError(c, err, "wishlist", "list wishlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
}

// AddWishlistItem handles POST /api/wishlist
func (rc *ReadingController) AddWishlistItem(c *gin.Context) {
	var item entities.WishlistItem
	if err := c.ShouldBindJSON(&item); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	item.ID = 0
	item.ReaderID = readerID(c)
	if err := rc.reading.AddWishlistItem(c.Request.Context(), &item); err != nil {
		respondServiceError(c, err, "wishlist item", "add wishlist item")
		return
	}
	c.JSON(http.StatusCreated, item)
}

// RemoveWishlistItem handles DELETE /api/wishlist/:isbn
func (rc *ReadingController) RemoveWishlistItem(c *gin.Context) {
	if err := rc.reading.RemoveWishlistItem(c.Request.Context(), readerID(c), c.Param("isbn")); err != nil {
		respondServiceError(c, err, "wishlist item", "remove wishlist item")
		return
	}
	respondSuccess(c, "wishlist item removed")
}
