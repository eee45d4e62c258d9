package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/medipredict/internal/config"
	"github.com/medipredict/internal/db"
	"github.com/medipredict/internal/service"
	"gorm.io/gorm"
)

type demoMedication struct {
	name     string
	dosage   string
	schedule string
	// 基础漏服概率，周末与夜间会额外上浮
	missRate float64
}

type demoUser struct {
	username    string
	password    string
	doctorName  string
	medications []demoMedication
}

var demoUsers = []demoUser{
	{
		username:   "demo",
		password:   "demo123",
		doctorName: "Dr. Zhang",
		medications: []demoMedication{
			{name: "Metformin", dosage: "500mg", schedule: "Morning", missRate: 0.1},
			{name: "Atorvastatin", dosage: "20mg", schedule: "Night", missRate: 0.3},
		},
	},
	{
		username:   "demo2",
		password:   "demo123",
		doctorName: "Dr. Li",
		medications: []demoMedication{
			{name: "Lisinopril", dosage: "10mg", schedule: "08:00", missRate: 0.15},
			{name: "Vitamin D", dosage: "1000IU", schedule: "", missRate: 0.4},
		},
	},
}

type demoSummary struct {
	Users       int
	Medications int
	Doses       int
}

// 演示数据生成器
func main() {
	days := flag.Int("days", 28, "生成多少天的服药记录")
	seed := flag.Int64("seed", 42, "随机种子")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("配置加载失败:", err)
	}
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}
	defer db.Close() //nolint:errcheck

	fmt.Println("开始生成演示数据...")

	summary, err := seedDemoData(db.DB, *days, time.Now(), rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatal("生成演示数据失败:", err)
	}

	fmt.Println("演示数据生成完成！")
	fmt.Printf("用户: %d 个 (密码均为 demo123)\n", summary.Users)
	fmt.Printf("用药: %d 条\n", summary.Medications)
	fmt.Printf("服药记录: %d 条\n", summary.Doses)
}

// seedDemoData 为每个演示用户生成用药与 days 天的服药记录，已存在的用户会被跳过
func seedDemoData(gdb *gorm.DB, days int, now time.Time, rng *rand.Rand) (demoSummary, error) {
	users := service.NewUserService(gdb)
	medications := service.NewMedicationService(gdb)
	doses := service.NewDoseLogService(gdb, nil)

	var summary demoSummary
	for _, demo := range demoUsers {
		user, err := users.Register(service.RegisterInput{
			Username: demo.username,
			Password: demo.password,
			Profile:  service.ProfileInput{DoctorName: demo.doctorName},
		})
		if errors.Is(err, service.ErrUsernameTaken) {
			fmt.Printf("用户 %s 已存在，跳过创建\n", demo.username)
			continue
		}
		if err != nil {
			return summary, err
		}
		summary.Users++
		sess := service.NewSession(user.ID, user.Username)

		for _, item := range demo.medications {
			medication, err := medications.Create(sess, service.MedicationInput{
				Name:     item.name,
				Dosage:   item.dosage,
				Schedule: item.schedule,
			})
			if err != nil {
				return summary, err
			}
			summary.Medications++

			hour, minute, ok := service.ScheduleClock(item.schedule)
			if !ok {
				hour, minute = 12, 0
			}

			for offset := days; offset > 0; offset-- {
				day := now.AddDate(0, 0, -offset)
				occurredAt := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()).
					Add(time.Duration(rng.Intn(40)-20) * time.Minute)

				status := db.DoseTaken
				if rng.Float64() < missProbability(item.missRate, occurredAt) {
					status = db.DoseMissed
				}
				if _, err := doses.Append(sess, medication.ID, occurredAt, status); err != nil {
					return summary, err
				}
				summary.Doses++
			}
		}
		fmt.Printf("✅ 用户 %s 的演示数据创建完成\n", demo.username)
	}
	return summary, nil
}

func missProbability(base float64, at time.Time) float64 {
	p := base
	if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
		p += 0.15
	}
	if at.Hour() >= 20 {
		p += 0.1
	}
	if p > 0.95 {
		p = 0.95
	}
	return p
}
