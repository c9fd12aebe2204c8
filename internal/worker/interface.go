package worker

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/shevd/shevd/internal/worker Store
