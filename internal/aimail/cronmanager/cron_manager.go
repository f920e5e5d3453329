// Пакет для управления cron-задачами композера: уборка зависших загрузок
// и осиротевших вложений выполняется по расписанию.
//
// Основные возможности:
//   - Загрузка задач из реестра.
//   - Запуск и остановка cron-диспетчера.
//   - Восстановление после паник внутри задач.
package cronmanager

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

type CronJobFunc func()

type Job struct {
	Func     CronJobFunc
	Schedule string
}

type JobRegistry map[string]Job

type CronManager struct {
	dispatcher  *cron.Cron
	jobs        map[string]cron.EntryID
	mu          sync.Mutex
	jobRegistry JobRegistry
}

// NewCronManager создает менеджер для планирования задач из реестра.
func NewCronManager(jobRegistry JobRegistry) *CronManager {
	dispatcher := cron.New(
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)

	return &CronManager{
		dispatcher:  dispatcher,
		jobs:        make(map[string]cron.EntryID),
		jobRegistry: jobRegistry,
	}
}

// LoadJobs заново регистрирует все задачи реестра в расписании.
func (cm *CronManager) LoadJobs() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for name, entryID := range cm.jobs {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}

	for name, job := range cm.jobRegistry {
		id, err := cm.dispatcher.AddFunc(job.Schedule, job.Func)
		if err != nil {
			slog.Error("Error adding job", "name", name, "err", err)
			return fmt.Errorf("failed to add job '%s': %w", name, err)
		}
		cm.jobs[name] = id
	}

	return nil
}

// RemoveJob снимает задачу с расписания по имени.
func (cm *CronManager) RemoveJob(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if entryID, exists := cm.jobs[name]; exists {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}
}

// Start запускает диспетчер расписания.
func (cm *CronManager) Start() {
	cm.dispatcher.Start()
	slog.Info("Cron manager started")
}

// Stop останавливает диспетчер и дожидается завершения запущенных задач.
func (cm *CronManager) Stop() {
	ctx := cm.dispatcher.Stop()
	<-ctx.Done()
	slog.Info("Cron manager stopped")
}
