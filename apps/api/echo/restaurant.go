package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/restorank/restorank/core/restaurant"
	"github.com/restorank/restorank/services/metrics"
)

func (s *Server) registerRestaurantAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	rg := g.Group("/restaurants")

	// un-authed endpoints
	rg.GET("", s.listRestaurants)
	rg.GET("/sponsors", s.listSponsors)
	rg.GET("/restaurantTags", s.listTags)
	rg.GET("/:id", s.retrieveRestaurant)

	// authed endpoints
	rg.GET("/rate_history", s.rateHistory, jwt)
	rg.PATCH("/:id/rate", s.rateRestaurant, jwt, s.requireUser)
}

func (s *Server) listRestaurants(ctx echo.Context) error {
	page, err := s.deps.RestaurantSvc.List(ctx.Request().Context(), bindListFilter(ctx))
	if err != nil {
		if errors.Is(err, restaurant.ErrPageNotFound) {
			return errPageNotFound
		}
		return errors.Wrap(err, "listing restaurants")
	}

	msg := "Sent successfully"
	if len(page.Restaurants) == 0 {
		msg = "No restaurants found matching your search."
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message":         msg,
		"restaurantsData": page.Restaurants,
		"totalPages":      page.TotalPages,
		"totalItemsCount": page.TotalItems,
	})
}

func (s *Server) retrieveRestaurant(ctx echo.Context) error {
	id, ok := pathID(ctx)
	if !ok {
		return errRestoNotFound
	}

	resto, err := s.deps.RestaurantSvc.Get(ctx.Request().Context(), id, ctx.QueryParam(langParam))
	if err != nil {
		if errors.Is(err, restaurant.ErrNotFound) {
			return errRestoNotFound
		}
		return errors.Wrap(err, "getting restaurant")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Sent successfully", "restaurantsData": resto})
}

func (s *Server) rateRestaurant(ctx echo.Context) error {
	id, ok := pathID(ctx)
	if !ok {
		return errRestoNotFound
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data restaurant.NewRating
	if err = ctx.Bind(&data); err != nil {
		metrics.Ratings.WithLabelValues(metrics.Rejected).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Rating must be an integer between 1 and 5."})
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		metrics.Ratings.WithLabelValues(metrics.Rejected).Inc()
		return err
	}

	resto, err := s.deps.RestaurantSvc.Rate(ctx.Request().Context(), claims.UserID, id, data, ctx.QueryParam(langParam))
	switch {
	case errors.Is(err, restaurant.ErrNotFound):
		metrics.Ratings.WithLabelValues(metrics.Rejected).Inc()
		return errRestoNotFound
	case errors.Is(err, restaurant.ErrAlreadyRated):
		metrics.Ratings.WithLabelValues(metrics.Rejected).Inc()
		return errAlreadyRated
	case err != nil:
		metrics.Ratings.WithLabelValues(metrics.Failure).Inc()
		return errors.Wrap(err, "rating restaurant")
	}
	metrics.Ratings.WithLabelValues(metrics.Success).Inc()

	return ctx.JSON(http.StatusOK, echo.Map{
		"message":         "You Rated successfully",
		"displayMessage":  "You Rated Successfully",
		"restaurantsData": []restaurant.Restaurant{resto},
	})
}

func (s *Server) rateHistory(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	entries, err := s.deps.RestaurantSvc.History(ctx.Request().Context(), claims.UserID, ctx.QueryParam(langParam))
	if err != nil {
		return errors.Wrap(err, "querying rating history")
	}

	msg := "Fetched Rating History successfully"
	if len(entries) == 0 {
		msg = "No Rating History"
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": msg, "reviewsHistory": entries})
}

func (s *Server) listSponsors(ctx echo.Context) error {
	sponsors, err := s.deps.RestaurantSvc.Sponsors(ctx.Request().Context(), ctx.QueryParam(langParam))
	if err != nil {
		return errors.Wrap(err, "querying sponsors")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Fetched sponsors successfully.", "sponsorsData": sponsors})
}

func (s *Server) listTags(ctx echo.Context) error {
	tags, err := s.deps.RestaurantSvc.Tags(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying tags")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Fetched tags successfully.", "tagsData": tags})
}
