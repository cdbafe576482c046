package model

// 排行榜范围过滤依赖的成员关系表。课程/组织等领域数据本身由外部系统维护，
// 这里只落地范围过滤所需的最小结构。

// swagger:model Organization
type Organization struct {
	BaseModel
	Name string `gorm:"size:100;not null" json:"name"`
}

func (Organization) TableName() string {
	return "organizations"
}

// swagger:model Cohort
type Cohort struct {
	BaseModel
	Name  string `gorm:"size:100;not null" json:"name"`
	OrgID uint   `gorm:"index" json:"orgId"`
}

func (Cohort) TableName() string {
	return "cohorts"
}

// UserCohort 用户-同期组成员关系
type UserCohort struct {
	BaseModel
	UserID   uint   `gorm:"index:idx_user_cohort,unique;type:bigint unsigned;not null" json:"userId"`
	CohortID uint   `gorm:"index:idx_user_cohort,unique;type:bigint unsigned;not null" json:"cohortId"`
	Role     string `gorm:"size:20;default:'learner'" json:"role"`
}

func (UserCohort) TableName() string {
	return "user_cohorts"
}

// swagger:model Course
type Course struct {
	BaseModel
	Name  string `gorm:"size:100;not null" json:"name"`
	OrgID uint   `gorm:"index" json:"orgId"`
}

func (Course) TableName() string {
	return "courses"
}

// CourseEnrollment 用户-课程注册关系
type CourseEnrollment struct {
	BaseModel
	UserID   uint `gorm:"index:idx_user_course,unique;type:bigint unsigned;not null" json:"userId"`
	CourseID uint `gorm:"index:idx_user_course,unique;type:bigint unsigned;not null" json:"courseId"`
}

func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}

// Task 学习任务，topic 排行榜通过任务的主题标记筛选用户
type Task struct {
	BaseModel
	Title    string `gorm:"size:255;not null" json:"title"`
	CourseID *uint  `gorm:"index" json:"courseId"`
	TopicID  *uint  `gorm:"index" json:"topicId"`
}

func (Task) TableName() string {
	return "tasks"
}
