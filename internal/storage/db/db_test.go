package db_test

import (
	"path/filepath"
	"strings"
	"testing"

	"shadowpipe/internal/storage/db"
)

// TestModel 用于验证迁移与基础读写的简单模型
type TestModel struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255"`
}

// TestGetDefaultPath 验证默认路径包含应用目录并以库文件名结尾
func TestGetDefaultPath(t *testing.T) {
	dbName := "test_db.db"
	path, err := db.GetDefaultPath(dbName)
	if err != nil {
		t.Fatalf("获取默认路径失败: %v", err)
	}
	if !strings.HasSuffix(path, dbName) {
		t.Errorf("路径 %s 不是以 %s 结尾", path, dbName)
	}
	if !strings.Contains(path, "shadowpipe") {
		t.Errorf("路径 %s 不包含应用名称 'shadowpipe'", path)
	}
}

// TestDatabaseInitialization 验证初始化、迁移与基本读写
func TestDatabaseInitialization(t *testing.T) {
	conn, err := db.New(db.Options{
		FullPath: filepath.Join(t.TempDir(), "unit_test.db"),
		Prefix:   "test_",
	})
	if err != nil {
		t.Fatalf("初始化数据库失败: %v", err)
	}

	if err := db.Migrate(conn, &TestModel{}); err != nil {
		t.Fatalf("迁移数据库失败: %v", err)
	}

	want := TestModel{Name: "hello"}
	if err := conn.Create(&want).Error; err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	var got TestModel
	if err := conn.First(&got, want.ID).Error; err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if got.Name != "hello" {
		t.Errorf("got %q, want hello", got.Name)
	}
}
