package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/shuttlecourt/league/internal/httputil"
	"github.com/shuttlecourt/league/internal/live"
	"github.com/shuttlecourt/league/internal/service"
)

type application struct {
	leagues  *service.LeagueService
	brackets *service.BracketService
	matches  *service.MatchService
	live     *live.Handler
	origins  []string
}

type scoreInput struct {
	Score1 *int `json:"score1"`
	Score2 *int `json:"score2"`
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: app.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ws/leagues/{leagueID}", app.live.ServeWS)

	r.Route("/leagues", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			leagues, err := app.leagues.ListLeagues(r.Context())
			if err != nil {
				httputil.Error(w, "Failed to list leagues", err)
				return
			}
			httputil.JSON(w, http.StatusOK, leagues)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var input service.LeagueInput
			if err := httputil.DecodeJSON(w, r, &input); err != nil {
				httputil.BadRequest(w, "Invalid league data", err)
				return
			}
			league, err := app.leagues.CreateLeague(r.Context(), input)
			if err != nil {
				httputil.Error(w, "Failed to create league", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, league)
		})

		r.Route("/{leagueID}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				data, err := app.leagues.GetLeague(r.Context(), leagueID)
				if err != nil {
					httputil.Error(w, "Failed to get league", err)
					return
				}
				httputil.JSON(w, http.StatusOK, data)
			})

			r.Post("/participants", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				var input service.ParticipantInput
				if err := httputil.DecodeJSON(w, r, &input); err != nil {
					httputil.BadRequest(w, "Invalid participant data", err)
					return
				}
				participant, err := app.leagues.RegisterParticipant(r.Context(), leagueID, input)
				if err != nil {
					httputil.Error(w, "Failed to register participant", err)
					return
				}
				httputil.JSON(w, http.StatusCreated, participant)
			})

			r.Delete("/participants/{participantID}", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				participantID, ok := uuidParam(w, r, "participantID")
				if !ok {
					return
				}
				if err := app.leagues.WithdrawParticipant(r.Context(), leagueID, participantID); err != nil {
					httputil.Error(w, "Failed to withdraw participant", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/participants/{participantID}/ban", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				participantID, ok := uuidParam(w, r, "participantID")
				if !ok {
					return
				}
				result, err := app.matches.BanParticipant(r.Context(), leagueID, participantID)
				if err != nil {
					httputil.Error(w, "Failed to ban participant", err)
					return
				}
				httputil.JSON(w, http.StatusOK, result)
			})

			r.Post("/recruiting/close", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				league, err := app.leagues.CloseRecruiting(r.Context(), leagueID)
				if err != nil {
					httputil.Error(w, "Failed to close recruiting", err)
					return
				}
				httputil.JSON(w, http.StatusOK, league)
			})

			r.Post("/cancel", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				league, err := app.leagues.CancelLeague(r.Context(), leagueID)
				if err != nil {
					httputil.Error(w, "Failed to cancel league", err)
					return
				}
				httputil.JSON(w, http.StatusOK, league)
			})

			r.Post("/bracket", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				data, err := app.brackets.GenerateBracket(r.Context(), leagueID)
				if err != nil {
					httputil.Error(w, "Failed to generate bracket", err)
					return
				}
				httputil.JSON(w, http.StatusCreated, data)
			})

			r.Get("/bracket", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				data, err := app.brackets.GetBracket(r.Context(), leagueID)
				if err != nil {
					httputil.Error(w, "Failed to get bracket", err)
					return
				}
				httputil.JSON(w, http.StatusOK, data)
			})

			r.Get("/sets/in-progress", func(w http.ResponseWriter, r *http.Request) {
				leagueID, ok := uuidParam(w, r, "leagueID")
				if !ok {
					return
				}
				sets, err := app.matches.GetInProgressSets(r.Context(), leagueID)
				if err != nil {
					httputil.Error(w, "Failed to get sets in progress", err)
					return
				}
				httputil.JSON(w, http.StatusOK, sets)
			})
		})
	})

	r.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			matchID, ok := uuidParam(w, r, "matchID")
			if !ok {
				return
			}
			data, err := app.matches.GetMatch(r.Context(), matchID)
			if err != nil {
				httputil.Error(w, "Failed to get match", err)
				return
			}
			httputil.JSON(w, http.StatusOK, data)
		})

		r.Post("/sets/{setIndex}/start", func(w http.ResponseWriter, r *http.Request) {
			matchID, ok := uuidParam(w, r, "matchID")
			if !ok {
				return
			}
			setIndex, ok := setIndexParam(w, r)
			if !ok {
				return
			}
			match, err := app.matches.StartSet(r.Context(), matchID, setIndex)
			if err != nil {
				httputil.Error(w, "Failed to start set", err)
				return
			}
			httputil.JSON(w, http.StatusOK, match)
		})

		r.Put("/sets/{setIndex}/live", func(w http.ResponseWriter, r *http.Request) {
			matchID, setIndex, score, ok := scoreRequest(w, r)
			if !ok {
				return
			}
			set, err := app.matches.RecordLiveScore(r.Context(), matchID, setIndex, *score.Score1, *score.Score2)
			if err != nil {
				httputil.Error(w, "Failed to record live score", err)
				return
			}
			httputil.JSON(w, http.StatusOK, set)
		})

		r.Put("/sets/{setIndex}/score", func(w http.ResponseWriter, r *http.Request) {
			matchID, setIndex, score, ok := scoreRequest(w, r)
			if !ok {
				return
			}
			progress, err := app.matches.RegisterSetScore(r.Context(), matchID, setIndex, *score.Score1, *score.Score2)
			if err != nil {
				httputil.Error(w, "Failed to register set score", err)
				return
			}
			httputil.JSON(w, http.StatusOK, progress)
		})
	})

	return r
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func setIndexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	setIndex, err := strconv.Atoi(chi.URLParam(r, "setIndex"))
	if err != nil {
		httputil.BadRequest(w, "Invalid set index", err)
		return 0, false
	}
	return setIndex, true
}

func scoreRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, scoreInput, bool) {
	var score scoreInput
	matchID, ok := uuidParam(w, r, "matchID")
	if !ok {
		return matchID, 0, score, false
	}
	setIndex, ok := setIndexParam(w, r)
	if !ok {
		return matchID, 0, score, false
	}
	if err := httputil.DecodeJSON(w, r, &score); err != nil {
		httputil.BadRequest(w, "Invalid score data", err)
		return matchID, 0, score, false
	}
	if score.Score1 == nil || score.Score2 == nil {
		httputil.BadRequest(w, "Both scores are required", errors.New("missing score"))
		return matchID, 0, score, false
	}
	return matchID, setIndex, score, true
}
