// Package mocks holds gomock doubles for the pipeline's collaborator
// interfaces. Regenerate after an interface change with:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	users := mocks.NewMockUserDirectory(ctrl)
//	users.EXPECT().ListUsersPage(gomock.Any(), 1, 100).Return(ids, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_directory_mock.go github.com/tbourn/journal-insights/internal/services UserDirectory
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=record_store_mock.go github.com/tbourn/journal-insights/internal/services RecordStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_generator_mock.go github.com/tbourn/journal-insights/internal/services UserGenerator
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=publisher_mock.go github.com/tbourn/journal-insights/internal/queue Publisher
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=generator_mock.go github.com/tbourn/journal-insights/internal/ai Generator
