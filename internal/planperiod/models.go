package planperiod

// Plan is one row of the plan dimension, owned by the ETL subsystem and
// read-only here.
type Plan struct {
	PlanKey   string `gorm:"column:plan_key;primaryKey;type:varchar(128)"`
	TimeUnit  string `gorm:"column:time_unit;type:varchar(16)"`
	CycleTime int32  `gorm:"column:cycle_time"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "dim_plans" }
